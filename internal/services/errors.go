package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify render pipeline failures. Every job-terminal error
// carries exactly one of these markers so the scheduler can persist a
// distinguishable failure reason without leaking internals to the API.
var (
	ErrValidation  = errors.New("validation error")
	ErrExtraction  = errors.New("extraction error")
	ErrComposition = errors.New("composition error")
	ErrEncoding    = errors.New("encoding error")
	ErrResource    = errors.New("resource error")
	ErrInterrupted = errors.New("interrupted")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExtraction
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind identifies the taxonomy bucket of a classified error.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindExtraction  Kind = "extraction"
	KindComposition Kind = "composition"
	KindEncoding    Kind = "encoding"
	KindResource    Kind = "resource"
	KindInterrupted Kind = "interrupted"
	KindUnknown     Kind = "unknown"
)

// Classify maps an error to its taxonomy kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrComposition):
		return KindComposition
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	case errors.Is(err, ErrResource):
		return KindResource
	case errors.Is(err, ErrInterrupted):
		return KindInterrupted
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure may succeed if resubmitted with lower
// render settings. Only resource exhaustion qualifies.
func Retryable(err error) bool {
	return errors.Is(err, ErrResource)
}

// Message returns the human-readable detail persisted on a failed job. The
// sentinel prefix is stripped so internal wrapping never reaches the API.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	for _, marker := range []error{ErrValidation, ErrExtraction, ErrComposition, ErrEncoding, ErrResource, ErrInterrupted} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "render failure"
	}
	return strings.Join(parts, ": ")
}
