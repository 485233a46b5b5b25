package upload

import "errors"

var (
	// ErrPipelineClosed is returned by QueueUpload once Shutdown has
	// been called; the worker accepts no new uploads after that.
	ErrPipelineClosed = errors.New("upload: pipeline is shut down")
)
