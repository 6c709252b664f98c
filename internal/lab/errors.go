package lab

import "fmt"

// RemoteError is a failure reported by, or while reaching, one of the
// resource services. Status is 0 when no response was received.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Network reports whether the call failed before any response arrived.
func (e *RemoteError) Network() bool {
	return e.Status == 0
}

// ValidationError rejects a command locally, before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// FetchError is one failed list call of a poll. Error keeps the cause for
// logs; Summary is what the operator sees.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Summary is the banner text, without transport detail.
func (e *FetchError) Summary() string {
	return "Failed to fetch " + e.Resource
}
