package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEntity is returned when a value is not a struct or a pointer to one.
var ErrInvalidEntity = errors.New("entity must be a struct or pointer to struct")

// AnnotationError reports a structurally invalid entity declaration.
type AnnotationError struct {
	Entity string
	Field  string
	Reason string
	Err    error
}

func (e *AnnotationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid entity ")
	sb.WriteString(e.Entity)
	if e.Field != "" {
		fmt.Fprintf(&sb, " field %s", e.Field)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *AnnotationError) Unwrap() error { return e.Err }
