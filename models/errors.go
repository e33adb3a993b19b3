package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnpairedRow = errors.New("amounts can only be compared on rows present in both datasets")

// SchemaError reports required columns missing from one side's dataset.
type SchemaError struct {
	Side    Side
	Columns []string
}

func (e *SchemaError) Error() string {
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf("%s dataset is missing required column(s): %s", e.Side, strings.Join(quoted, ", "))
}

// ComparisonError is a numeric comparison that could not be evaluated.
// Rows hitting it are classified as mismatched instead of failing the run.
type ComparisonError struct {
	Field string
	Msg   string
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("cannot compare %s: %s", e.Field, e.Msg)
}
