package app

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"arview/pkg/slug"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects field errors for one request. The zero value is
// a passing result.
type ValidationResult struct {
	Errors []FieldError
}

func (r *ValidationResult) Add(field, format string, args ...any) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Err returns nil for a passing result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Fields: r.Errors}
}

// ValidationError is returned when input fails validation. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	var r ValidationResult
	r.Add(field, format, args...)
	return r.Err()
}

func (r *ValidationResult) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < min:
		r.Add(field, "must be at least %d characters", min)
	case max > 0 && n > max:
		r.Add(field, "must be at most %d characters", max)
	}
}

func (r *ValidationResult) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		r.Add(field, "is required")
		return false
	}
	return true
}

func (r *ValidationResult) url(field, value string) {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		r.Add(field, "must be a valid URL")
	}
}

func (r *ValidationResult) email(field, value string) {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		r.Add(field, "must be a valid email")
	}
}

func (r *ValidationResult) slug(field, value string) {
	r.length(field, value, 2, slug.MaxLength)
	if !slug.Valid(value) {
		r.Add(field, "must be lowercase and contain only letters, numbers, and hyphens")
	}
}
