package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column list from a unique violation detail: "Key (a, b)=(x, y) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps database errors to AppError instances:
//   - sql.ErrNoRows / pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//   - context deadline/cancel → Timeout/Canceled
//
// Unrecognised errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrCodeTimeout, "database operation timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(err, ErrCodeCanceled, "database operation canceled")
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return Wrap(err, ErrCodeNotFound, "resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func mapPgError(pgErr *pgconn.PgError) error {
	appErr := &AppError{Cause: pgErr, Constraint: pgErr.ConstraintName, Field: pgErr.ColumnName}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		appErr.Code = ErrCodeConflict
		appErr.Message = "record already exists"
		if appErr.Field == "" {
			appErr.Field = uniqueField(pgErr)
		}
	case pgerrcode.ForeignKeyViolation:
		appErr.Code = ErrCodeForeignKey
		appErr.Message = "referenced " + tableLabel(pgErr.TableName) + " does not exist or is still in use"
	case pgerrcode.CheckViolation:
		appErr.Code = ErrCodeValidation
		appErr.Message = "value violates constraint " + pgErr.ConstraintName
	case pgerrcode.NotNullViolation:
		appErr.Code = ErrCodeValidation
		appErr.Message = "required field is missing"
	default:
		appErr.Code = ErrCodeInternal
		appErr.Message = "database error"
	}
	return appErr
}

func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.Detail == "" {
		return ""
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}

// tableLabel maps table names to the nouns used in API messages.
func tableLabel(table string) string {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case "forecast_jobs":
		return "forecast job"
	case "forecast_results":
		return "forecast result"
	case "day_type_ratios":
		return "day type ratio"
	case "":
		return "record"
	default:
		return strings.ReplaceAll(table, "_", " ")
	}
}
