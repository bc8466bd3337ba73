package sqlstore

import (
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/store"
	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

var pgConstraintFields = map[string]string{
	"accounts_email_key":              store.FieldEmail,
	"accounts_username_key":           store.FieldUsername,
	"accounts_external_id_key":        store.FieldExternalID,
	"password_reset_tokens_token_key": "token",
}

var sqliteColumnFields = map[string]string{
	"accounts.email":              store.FieldEmail,
	"accounts.username":           store.FieldUsername,
	"accounts.external_id":        store.FieldExternalID,
	"password_reset_tokens.token": "token",
}

// uniqueViolationField reports whether err is a unique-constraint violation and
// which logical field it concerns.
func uniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		if field, ok := pgConstraintFields[pgErr.ConstraintName]; ok {
			return field, true
		}
		return fieldFromMessage(pgErr.Detail), true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fieldFromMessage(err.Error()), true
		}
		return "", false
	}

	message := strings.ToLower(err.Error())
	if strings.Contains(message, "unique constraint failed") {
		return fieldFromMessage(message), true
	}
	return "", false
}

func fieldFromMessage(message string) string {
	message = strings.ToLower(message)
	for column, field := range sqliteColumnFields {
		if strings.Contains(message, column) {
			return field
		}
	}
	switch {
	case strings.Contains(message, "(email)"):
		return store.FieldEmail
	case strings.Contains(message, "(username)"):
		return store.FieldUsername
	case strings.Contains(message, "(external_id)"):
		return store.FieldExternalID
	}
	return "unknown"
}
