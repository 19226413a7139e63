package series

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every InputError.
var ErrInvalidInput = errors.New("invalid input series")

// InputError describes a malformed observation series.
type InputError struct {
	Field  string
	Index  int
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input series: %s[%d]: %s", e.Field, e.Index, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
