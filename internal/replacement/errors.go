package replacement

import "errors"

var (
	// ErrDuplicatePath is returned when loadFromBytes is called for a
	// relative path that is already loaded — refused silently per
	// spec §7's invalid-input handling.
	ErrDuplicatePath = errors.New("replacement: relative path already loaded")

	// ErrUnknownMagic is returned when a file's leading bytes match
	// neither the DDS nor PNG magic.
	ErrUnknownMagic = errors.New("replacement: unrecognized file magic")
)
