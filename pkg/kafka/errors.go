package kafka

import "errors"

// permanentError marks a handler failure that redelivery cannot fix, such
// as an undecodable payload. The consumer commits past these instead of
// retrying them.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the consumer treats it as non-retryable. A nil err
// returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether any error in the chain was wrapped by Permanent
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}
