package service

import "fmt"

// InputError reports a write rejected because of the caller's input:
// failed validation, a uniqueness violation, or a failed login.
type InputError struct {
	Message     string
	InvalidArgs string
	Err         error
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func inputError(message, invalidArgs string, err error) *InputError {
	return &InputError{Message: message, InvalidArgs: invalidArgs, Err: err}
}
