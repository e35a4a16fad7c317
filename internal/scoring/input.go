package scoring

import (
	"fmt"
	"strings"
)

// Kind selects the scoring path for an input.
type Kind string

const (
	KindURL    Kind = "url"
	KindEmail  Kind = "email"
	KindQRText Kind = "qr_text"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindURL, KindEmail, KindQRText:
		return true
	}
	return false
}

// Input is one scoring request. For email, Value is the body and Subject is
// optional. For qr_text, Value is the decoded QR payload.
type Input struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Value   string `json:"value" yaml:"value"`
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// ValidationError rejects an input before any scoring work is done.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the kind and that the value is not blank.
func (in Input) Validate() error {
	switch {
	case in.Kind == "":
		return &ValidationError{Field: "kind", Reason: "required"}
	case !in.Kind.Valid():
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", in.Kind)}
	}
	if strings.TrimSpace(in.Value) == "" {
		return &ValidationError{Field: "value", Reason: "must not be empty"}
	}
	return nil
}
