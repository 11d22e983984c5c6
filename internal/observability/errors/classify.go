// Package errors turns arbitrary errors into low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Classifier lets an error choose its own metric label.
type Classifier interface {
	MetricClass() string
}

// Classify returns a snake_case label for err, or "" for nil.
// Order: self-classifying errors, context errors, Postgres SQLSTATE classes, then the
// innermost concrete type name.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var c Classifier
	if goerrors.As(err, &c) {
		if class := strings.TrimSpace(c.MetricClass()); class != "" {
			return class
		}
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return "pg_" + strings.ToLower(pgErr.Code[:2])
	}

	return typeName(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
