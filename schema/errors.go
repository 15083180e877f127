package schema

import (
	"errors"
	"fmt"
)

// TemplateNotFoundError means no file in Dir matched Pattern.
type TemplateNotFoundError struct {
	Dir     string
	Pattern string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("schema: no template matching %q in %q", e.Pattern, e.Dir)
}

// MalformedTemplateError means a template file was found but no usable header
// could be extracted from it.
type MalformedTemplateError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedTemplateError) Error() string {
	msg := "schema: malformed template"
	if e.Path != "" {
		msg += fmt.Sprintf(" %q", e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedTemplateError) Unwrap() error { return e.Err }

// IsTemplateNotFound reports whether err is a TemplateNotFoundError.
func IsTemplateNotFound(err error) bool {
	var e *TemplateNotFoundError
	return errors.As(err, &e)
}

// IsMalformed reports whether err is a MalformedTemplateError.
func IsMalformed(err error) bool {
	var e *MalformedTemplateError
	return errors.As(err, &e)
}
