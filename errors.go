package texturecache

import "errors"

var (
	// ErrReplacementDirectoryNotFound is returned by LoadReplacementDirectory
	// when the target directory or its rt64.json catalog cannot be opened.
	ErrReplacementDirectoryNotFound = errors.New("texturecache: replacement directory not found")

	// ErrDatabaseSaveFailed is returned by SaveReplacementDatabase when no
	// replacement directory has been loaded yet, so there is nowhere to
	// persist the catalog to. When writing the catalog fails, the I/O
	// error is returned wrapped in it.
	ErrDatabaseSaveFailed = errors.New("texturecache: replacement database save failed")
)
