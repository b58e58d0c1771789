package repository

import (
	"errors"

	"leadmarket_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repository reacts to.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// translate maps driver errors onto apperr kinds. Query failures that are not
// caused by the data itself are reported as transient.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("record not found").WithOp(op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			return apperr.Wrap(apperr.KindValidation, "constraint violated: "+pgErr.ConstraintName, err).WithOp(op)
		case pgUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, "duplicate record", err).WithOp(op)
		}
		return apperr.Wrap(apperr.KindInternal, "database error", err).WithOp(op)
	}
	return apperr.Transient("datastore unavailable", err).WithOp(op)
}

// translateMissing is translate with a caller-chosen NotFound message.
func translateMissing(op, notFound string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(notFound)
	}
	return translate(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
