package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Constraint names declared by the migrations.
const (
	constraintEmail    = "credentials_email_key"
	constraintNickname = "profiles_nickname_key"
)

// uniqueConstraint returns the name of the unique constraint err violated,
// or "" if err is not a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
