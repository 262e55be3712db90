package lib

import (
	"errors"
	"fmt"
)

type wrappedError struct {
	parent error
	child  error
}

// WrapError attaches child to parent so that errors.Is matches either of them.
// The message reads "parent: child"
func WrapError(parent error, child error) error {
	if child == nil {
		return parent
	}
	return &wrappedError{parent: parent, child: child}
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %s", e.parent, e.child)
}

func (e *wrappedError) Is(target error) bool {
	return errors.Is(e.parent, target)
}

func (e *wrappedError) Unwrap() error {
	return e.child
}
