package instance

import "errors"

// Instance is a configured messaging-provider connection. The pipeline
// only ever reads it.
type Instance struct {
	ID             string
	Name           string
	APIKey         string
	ForwardURL     string
	DefaultQueueID string
	OwnerID        string
}

// ErrNotFound is returned when no instance matches the requested name.
var ErrNotFound = errors.New("instance not found")
