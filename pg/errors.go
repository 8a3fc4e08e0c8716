package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

// classify translates a pgstac/postgres failure into the service taxonomy.
// Anything not recognized stays a StoreExecutionFailed wrapping the cause;
// the underlying detail is never masked.
func classify(op string, target string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return api.WrapError(api.KindAlreadyExists, op, target, err)
		case "23503": // foreign_key_violation: item references a missing collection
			return api.WrapError(api.KindCollectionNotFound, op, target, err)
		case "P0002": // no_data_found
			return api.WrapError(api.KindNotFound, op, target, err)
		case "22007", "22008": // invalid datetime input reached the store
			return api.WrapError(api.KindInvalidFilterExpression, op, target, err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return api.WrapError(api.KindStoreExecutionFailed, op, target, err)
	}

	return api.WrapError(api.KindStoreExecutionFailed, op, target, err)
}
