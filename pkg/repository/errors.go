package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// ErrConstraint reports a row rejected by a CHECK constraint.
var ErrConstraint = errors.New("constraint violation")

// MapError translates database errors to domain errors. sql.ErrNoRows becomes
// notFoundErr, unique violations become duplicateErr and check violations
// become ErrConstraint. The violated constraint's name is appended when
// Postgres reports one. Other errors pass through unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return withConstraint(duplicateErr, pgErr)
	case pgCheckViolation:
		return withConstraint(ErrConstraint, pgErr)
	}
	return err
}

func withConstraint(sentinel error, pgErr *pgconn.PgError) error {
	if pgErr.ConstraintName == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, pgErr.ConstraintName)
}
