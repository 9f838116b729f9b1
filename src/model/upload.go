package model

import (
	"database/sql"
	"time"
)

// Upload is an audit record of one accepted statement file.
type Upload struct {
	ID                   string      `json:"id"`
	UserID               int64       `json:"user_id"`
	AccountType          AccountType `json:"account_type"`
	ObjectKey            string      `json:"object_key"`
	Filename             string      `json:"filename"`
	SizeBytes            int64       `json:"size_bytes"`
	TransactionsInserted int64       `json:"transactions_inserted"`
	CreatedAt            time.Time   `json:"created_at"`
}

func CreateUpload(db *sql.DB, up *Upload) error {
	_, err := db.Exec(`
	INSERT INTO uploads (id, user_id, account_type, object_key, filename, size_bytes, transactions_inserted, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		up.ID, up.UserID, up.AccountType, up.ObjectKey, up.Filename,
		up.SizeBytes, up.TransactionsInserted, up.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// ListUploadsForUser returns the user's upload history, newest first.
func ListUploadsForUser(db *sql.DB, userID int64) ([]Upload, error) {
	rows, err := db.Query(`
	SELECT id, user_id, account_type, object_key, filename, size_bytes, transactions_inserted, created_at
	FROM uploads
	WHERE user_id = ?
	ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ups []Upload
	for rows.Next() {
		var up Upload
		var createdStr string
		if err := rows.Scan(&up.ID, &up.UserID, &up.AccountType, &up.ObjectKey,
			&up.Filename, &up.SizeBytes, &up.TransactionsInserted, &createdStr); err != nil {
			return nil, err
		}
		created, err := time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, err
		}
		up.CreatedAt = created
		ups = append(ups, up)
	}
	return ups, rows.Err()
}
