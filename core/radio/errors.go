package radio

import "errors"

// Validation errors returned by queue and library operations. They map to
// the HTTP layer's success/message contract and are never fatal.
var (
	ErrNotInLibrary         = errors.New("track not in library")
	ErrNotQueued            = errors.New("track not in queue")
	ErrDuplicate            = errors.New("track already in queue")
	ErrQueueFull            = errors.New("queue is full")
	ErrInvalidPath          = errors.New("invalid file path")
	ErrLastTrackProtected   = errors.New("cannot remove the last track in the library")
	ErrPlaceholderProtected = errors.New("cannot remove the silence placeholder")
)
