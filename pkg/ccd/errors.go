package ccd

import (
	"errors"
	"fmt"
)

// ErrCapabilityResolution is matched by every CapabilityError.
var ErrCapabilityResolution = errors.New("capability resolution failed")

// CapabilityError reports a named capability that could not be resolved
// when a Detector was built.
type CapabilityError struct {
	Capability string
	Name       string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("cannot resolve %s %q: %v", e.Capability, e.Name, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapabilityResolution
}
