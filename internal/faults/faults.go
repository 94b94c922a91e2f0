// Package faults defines the sentinel error markers shared across the
// pipeline and maps them onto HTTP status codes at the API boundary.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound marks lookups that found no dataset or row.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks filesystem failures in the storage directory.
	ErrStorage = errors.New("storage error")
	// ErrExternalTool marks generator process failures.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later status classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a pipeline error to the response status the API server
// should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
