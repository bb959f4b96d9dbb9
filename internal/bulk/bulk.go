// Package bulk runs one operation over a list of inputs, in order, with
// optional continue-on-error semantics.
package bulk

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Operation represents a bulk operation configuration
type Operation struct {
	ContinueOnError bool
	// Log receives one line per item; nil logs nothing
	Log *logrus.Entry
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Item  string
	Error error
}

// Err returns the first item error, or nil
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].Error
}

// ItemFunc is the function to execute for each item
type ItemFunc func(ctx context.Context, item string) error

// Execute runs fn for every item in order. Items are processed one at a
// time because every consumer writes to a single-writer store. It stops at
// the first failure unless ContinueOnError is set, and always stops when
// ctx ends.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{TotalItems: len(items)}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, ItemError{Item: item, Error: err})
			result.Failed++
			return result
		}

		if err := fn(ctx, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Item: item, Error: err})
			if op.Log != nil {
				op.Log.WithField("item", item).WithError(err).Error("item failed")
			}
			if !op.ContinueOnError {
				return result
			}
			continue
		}

		result.Succeeded++
		if op.Log != nil {
			op.Log.WithField("item", item).Debug("item done")
		}
	}

	return result
}
