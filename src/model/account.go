package model

import (
	"database/sql"
	"strings"
	"time"
)

// AccountType classifies where a statement came from. The set is fixed; the
// upload endpoint rejects anything else.
type AccountType string

const (
	AccountCash AccountType = "CASH"
	AccountSave AccountType = "SAVE"
	AccountWise AccountType = "WISE"
	AccountCorp AccountType = "CORP"
)

var AccountTypes = []AccountType{AccountCash, AccountSave, AccountWise, AccountCorp}

// ParseAccountType normalizes and validates an account type string.
func ParseAccountType(s string) (AccountType, bool) {
	candidate := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range AccountTypes {
		if candidate == t {
			return t, true
		}
	}
	return "", false
}

type Account struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Type      AccountType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// GetOrCreateAccount returns the user's account of the given type, creating
// it on first use. (user_id, type) is unique.
func GetOrCreateAccount(db *sql.DB, userID int64, accountType AccountType) (*Account, error) {
	row := db.QueryRow(`SELECT id, user_id, type FROM accounts WHERE user_id = ? AND type = ?`, userID, accountType)

	var account Account
	err := row.Scan(&account.ID, &account.UserID, &account.Type)
	if err == nil {
		return &account, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	res, err := db.Exec(`INSERT INTO accounts (user_id, type) VALUES (?, ?)`, userID, accountType)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Account{ID: id, UserID: userID, Type: accountType}, nil
}
