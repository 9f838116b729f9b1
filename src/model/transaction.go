package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/finlog/backend/src/logger"
)

// dateStorageFormat is how transaction dates are keyed in sqlite. Lexical
// order equals chronological order, which the listing queries rely on.
const dateStorageFormat = "2006-01-02 15:04:05"

// Transaction is one stored, normalized transaction row. Amounts are kept as
// decimal strings in the database so no float rounding ever touches them.
type Transaction struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	AccountID   int64            `json:"account_id"`
	AccountType AccountType      `json:"account_type"`
	Date        time.Time        `json:"date"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Balance     *decimal.Decimal `json:"balance"`
}

// InsertTransactions bulk-inserts within one database transaction, skipping
// rows that collide with the (user, account, date, description, amount)
// uniqueness key. Returns the number actually inserted.
func InsertTransactions(db *sql.DB, txs []Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbTx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
	INSERT INTO transactions (user_id, account_id, account_type, date, description, amount, balance)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, tx := range txs {
		var balance interface{}
		if tx.Balance != nil {
			balance = tx.Balance.String()
		}
		_, err := stmt.Exec(tx.UserID, tx.AccountID, tx.AccountType,
			tx.Date.UTC().Format(dateStorageFormat), tx.Description, tx.Amount.String(), balance)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on insert",
					"userID", tx.UserID, "date", tx.Date.Format("2006-01-02"), "description", tx.Description)
				continue
			}
			return 0, fmt.Errorf("error inserting transaction (%s): %w", tx.Description, err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func DeleteTransactionsForUser(db *sql.DB, userID int64) (int64, error) {
	res, err := db.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func CountTransactionsForUser(db *sql.DB, userID int64) (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

// ListTransactions returns a page of the user's transactions, newest first.
func ListTransactions(db *sql.DB, userID int64, limit, offset int) ([]Transaction, error) {
	rows, err := db.Query(`
	SELECT id, user_id, account_id, account_type, date, description, amount, balance
	FROM transactions
	WHERE user_id = ?
	ORDER BY date DESC, id DESC
	LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListTransactionsByAccountTypes returns every transaction of the user for
// the given account types, oldest first, for report aggregation.
func ListTransactionsByAccountTypes(db *sql.DB, userID int64, types []AccountType) ([]Transaction, error) {
	query := `
	SELECT id, user_id, account_id, account_type, date, description, amount, balance
	FROM transactions
	WHERE user_id = ? AND account_type IN (?` + repeatPlaceholder(len(types)-1) + `)
	ORDER BY date ASC, id ASC`

	args := make([]interface{}, 0, len(types)+1)
	args = append(args, userID)
	for _, t := range types {
		args = append(args, t)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListAllTransactionsForUser returns every transaction of the user.
func ListAllTransactionsForUser(db *sql.DB, userID int64) ([]Transaction, error) {
	return ListTransactionsByAccountTypes(db, userID, AccountTypes)
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var dateStr, amountStr string
		var balanceStr sql.NullString
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &tx.AccountType,
			&dateStr, &tx.Description, &amountStr, &balanceStr); err != nil {
			return nil, err
		}

		date, err := time.ParseInLocation(dateStorageFormat, dateStr, time.UTC)
		if err != nil {
			return nil, err
		}
		tx.Date = date

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, err
		}
		tx.Amount = amount

		if balanceStr.Valid {
			balance, err := decimal.NewFromString(balanceStr.String)
			if err != nil {
				return nil, err
			}
			tx.Balance = &balance
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
