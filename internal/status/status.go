package status

import "errors"

var (
	ErrInvalidEvent     = errors.New("event: invalid event payload")
	ErrEventNotFound    = errors.New("event: event not found")
	ErrAlreadyAttending = errors.New("attend: user already attending")
	ErrEventFull        = errors.New("attend: event is at full capacity")
	ErrJoinInProgress   = errors.New("attend: join already in progress")
	ErrNoFileProvided   = errors.New("upload: no image file provided")
	ErrUploadFailed     = errors.New("upload: image upload failed")
)
