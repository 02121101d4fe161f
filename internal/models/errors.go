package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors below unwrap to one of these.
var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalidState               = errors.New("invalid state")
	ErrInsufficientStock          = errors.New("insufficient stock")
	ErrInsufficientAvailableStock = errors.New("insufficient available stock")
	ErrValidation                 = errors.New("validation failed")
)

// NotFoundError reports a missing entity
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// StateError reports an illegal lifecycle transition
type StateError struct {
	Entity  string
	ID      string
	Current string
	Target  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot move %s %s from %s to %s", e.Entity, e.ID, e.Current, e.Target)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// StockError reports a quantity guard violation on a (product, warehouse) key.
// Kind is ErrInsufficientStock or ErrInsufficientAvailableStock.
type StockError struct {
	Kind        error
	ProductID   string
	WarehouseID string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s for product %s in warehouse %s: requested=%d, available=%d",
		e.Kind, e.ProductID, e.WarehouseID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Kind }

// ValidationError lists rejected input fields
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationError from field messages
func NewValidation(fields ...string) error {
	return &ValidationError{Fields: fields}
}
