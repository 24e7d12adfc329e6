package lifecycle

import "errors"

// Every failure returned by Service wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrNotAuthorized  = errors.New("not authorized")
	ErrSelfAssignment = errors.New("reporter cannot be assigned to their own issue")
	ErrAlreadySolved  = errors.New("issue already solved")
	ErrInvalidField   = errors.New("invalid assignment field")
)
