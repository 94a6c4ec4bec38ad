package fleet

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for fleet configuration errors.
var (
	ErrParse      = errors.New("parse failure")
	ErrValidation = errors.New("validation failure")
	ErrNoEntry    = errors.New("no such fleet entry")
)

// ParseError reports the first token of a floor list that is not an integer.
type ParseError struct {
	Token    string
	Position int // zero-based index of the token in the list
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("floor %d: %q is not an integer", e.Position+1, e.Token)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// FieldError is a validation message attached to one field of one entry.
type FieldError struct {
	Index   int
	Field   Field
	Message string
	Err     error
}

func (e FieldError) Error() string {
	if e.Index == FormIndex {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("elevator %d %s: %s", e.Index+1, e.Field, e.Message)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationErrors collects every field error of a form.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "invalid fleet configuration: " + strings.Join(msgs, "; ")
}

// Is matches ErrValidation, and ErrParse when any field failed to parse.
func (v ValidationErrors) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	for _, e := range v {
		if errors.Is(e.Err, target) {
			return true
		}
	}
	return false
}

// For returns the errors reported for entry index.
func (v ValidationErrors) For(index int) []FieldError {
	var out []FieldError
	for _, e := range v {
		if e.Index == index {
			out = append(out, e)
		}
	}
	return out
}
