package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidType    = errors.New("invalid post type")
	ErrNotPublic      = errors.New("post is not publicly viewable")
	ErrExcluded       = errors.New("page is excluded")
	ErrRenderService  = errors.New("render service error")
	ErrNoOutput       = errors.New("no preview generated")
	ErrPersistence    = errors.New("persistence error")
	ErrLockContention = errors.New("already in progress")
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTerminal reports whether err is one of the eligibility failures that
// make retrying the same item pointless.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrNotPublic) ||
		errors.Is(err, ErrExcluded)
}

// Kind returns a short machine-readable label for err, used in API payloads
// and error reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidType):
		return "invalid_post_type"
	case errors.Is(err, ErrNotPublic):
		return "post_not_public"
	case errors.Is(err, ErrExcluded):
		return "excluded_page"
	case errors.Is(err, ErrRenderService):
		return "service_error"
	case errors.Is(err, ErrNoOutput):
		return "no_preview_generated"
	case errors.Is(err, ErrLockContention):
		return "lock_contention"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
