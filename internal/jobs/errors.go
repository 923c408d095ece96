package jobs

import "errors"

// terminalError marks a handler failure that retrying cannot fix (validation
// errors, unknown persona/video). The worker fails such jobs immediately
// instead of scheduling a retry.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps err so the worker skips the retry/backoff path.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
