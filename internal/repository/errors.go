// Package repository holds the SQL data access for accounts: users and
// their refresh tokens.  Queries use '?' placeholders and portable SQL so
// the same code runs on MySQL and SQLite.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrInactive is returned when an account has been deactivated.
var ErrInactive = errors.New("account inactive")

// isDuplicate reports whether err is a unique-key violation in either
// supported driver.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
