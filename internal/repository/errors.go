// Package repository defines the storage primitives used by the booking
// reconciliation engine.  Each repository wraps a DBTX so the same code
// runs against a *sql.DB or inside a *sql.Tx.  Lookups that match no row
// return ErrNotFound; inserts that violate a unique index return
// ErrConflict so higher layers can fall back to fetching the winner.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup by natural key matches no row.
// It is a normal control-flow outcome: resolvers translate it into a
// create.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row on
// a unique index, typically because a concurrent request created the same
// natural key first.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// LookupError describes which lookup failed.  It wraps ErrNotFound so
// callers can test with errors.Is.
type LookupError struct {
	Resource string
	Key      string
	Parent   uint64
}

// Error implements the error interface
func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q under parent %d not found", e.Resource, e.Key, e.Parent)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *LookupError) Unwrap() error { return ErrNotFound }

func notFound(resource, key string, parent uint64) error {
	return &LookupError{Resource: resource, Key: key, Parent: parent}
}

// translateInsertErr maps driver specific unique violations onto
// ErrConflict and wraps everything else with the resource name.
func translateInsertErr(resource string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %s: %w: %v", resource, ErrConflict, err)
	}
	return fmt.Errorf("insert %s: %w", resource, err)
}

func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
