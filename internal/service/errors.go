package service

import "errors"

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEmail is returned when a create or an email-changing
	// update targets an address another user already owns.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrNotFound is returned when an update or delete references an id
	// that does not resolve to a stored user.
	ErrNotFound = errors.New("user not found")
)

// Field identifies which input failed validation.
type Field string

const (
	FieldName  Field = "name"
	FieldEmail Field = "email-format"
	FieldAge   Field = "age"
)

// ValidationError reports the first invalid field of a candidate user.
type ValidationError struct {
	Field Field
}

func (e *ValidationError) Error() string {
	switch e.Field {
	case FieldName:
		return "name cannot be empty"
	case FieldEmail:
		return "invalid email format"
	case FieldAge:
		return "age must be positive"
	default:
		return "invalid " + string(e.Field)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
