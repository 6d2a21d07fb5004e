package transport

import "fmt"

// EncodeError reports a request body that could not be serialized to JSON.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding request body: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// RequestFailedError reports a process that timed out, could not run, or
// exited non-zero. ExitCode is -1 when no exit status exists.
type RequestFailedError struct {
	ExitCode int
	Timeout  bool
	Err      error
}

func (e *RequestFailedError) Error() string {
	switch {
	case e.Timeout:
		return "request timed out"
	case e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	default:
		return fmt.Sprintf("request failed with exit code %d", e.ExitCode)
	}
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// DecodeError reports a response that is not valid JSON.
type DecodeError struct {
	Size int
}

func (e *DecodeError) Error() string {
	if e.Size == 0 {
		return "invalid JSON response: empty body"
	}
	return fmt.Sprintf("invalid JSON response (%d bytes)", e.Size)
}
