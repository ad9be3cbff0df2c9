package graph

import (
	"errors"

	"library-api/internal/auth"
	"library-api/internal/service"
)

// Machine-readable error codes placed in extensions.code.
const (
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeUnauthenticated = "UNAUTHENTICATED"
)

// Error is a resolver error carrying GraphQL extensions.
type Error struct {
	Message     string
	Code        string
	InvalidArgs string
	Cause       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Extensions implements graphql-go's ResolverError.
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.Code}
	if e.InvalidArgs != "" {
		ext["invalidArgs"] = e.InvalidArgs
	}
	if e.Cause != nil {
		ext["error"] = e.Cause.Error()
	}
	return ext
}

// Unauthenticated builds the error returned for an unverifiable token.
func Unauthenticated(cause error) *Error {
	return &Error{
		Message: "Invalid or expired token",
		Code:    CodeUnauthenticated,
		Cause:   cause,
	}
}

// resolverError maps service errors to coded GraphQL errors. Anything
// unrecognised passes through unchanged.
func resolverError(err error) error {
	var inputErr *service.InputError
	if errors.As(err, &inputErr) {
		return &Error{
			Message:     inputErr.Message,
			Code:        CodeBadUserInput,
			InvalidArgs: inputErr.InvalidArgs,
			Cause:       inputErr.Err,
		}
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		return Unauthenticated(err)
	}
	return err
}
