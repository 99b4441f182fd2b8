package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrTableNotFound        = fmt.Errorf("table %w", ErrNotFound)
	ErrOrderNotFound        = fmt.Errorf("order %w", ErrNotFound)
	ErrLineNotFound         = fmt.Errorf("order line %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrProductNotFound      = fmt.Errorf("product %w", ErrNotFound)
	ErrCategoryNotFound     = fmt.Errorf("category %w", ErrNotFound)
	ErrTableNumberTaken     = fmt.Errorf("table number already in use: %w", ErrConflict)
	ErrTableInterdicted     = fmt.Errorf("table is interdicted: %w", ErrConflict)
)

// InvalidArgument builds an ErrInvalidArgument with a caller-facing message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// StateError reports an action attempted from a status that does not allow it.
type StateError struct {
	Entity  string
	Action  string
	Current string
	Allowed []string
}

func (e *StateError) Error() string {
	current := e.Current
	if current == "" {
		current = "none"
	}
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s cannot %s from status %s", e.Entity, e.Action, current)
	}
	return fmt.Sprintf("%s cannot %s from status %s (allowed: %s)", e.Entity, e.Action, current, strings.Join(e.Allowed, ", "))
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// ConflictError is returned when a table already has a live order.
type ConflictError struct {
	Message  string
	Existing *models.TableOrder
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
