package query

import (
	"fmt"
)

// InvalidFilterError signale un FilterSpec mal formé (bornes inversées).
type InvalidFilterError struct {
	Field string
	Min   string
	Max   string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter: %s min %s > max %s", e.Field, e.Min, e.Max)
}

// DataIntegrityError signale une ligne qui viole les invariants du dataset.
// Index est la position de la ligne dans la séquence interrogée.
type DataIntegrityError struct {
	Index  int
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: row %d: %s: %s", e.Index, e.Field, e.Reason)
}
