package database

import "fmt"

// StoreError is a failed call into the local store. Op names the
// repository method, so a log line reads "store: SaveReturns: ...".
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a write refers to a row no earlier stage
// stored, such as a sentiment score for a post that was never ingested
type NotFoundError struct {
	Table string
	Key   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not stored", e.Table, e.Key)
}

// ValidationError rejects a row or a setting before it reaches the store
type ValidationError struct {
	Field  string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func notStored(table, key string) error {
	return &NotFoundError{Table: table, Key: key}
}

func invalid(field, reason string, value any) error {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}
