package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	AuthProvider string    `json:"auth_provider"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// HashPassword hashes the user's password using bcrypt.
func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a given password with the user's hashed password.
func (u *User) CheckPassword(password string) error {
	if u.Password == "" {
		return errors.New("user has no local password")
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

// CreateUser inserts a new user into the database.
func (u *User) CreateUser(db *sql.DB) error {
	if u.AuthProvider == "" {
		u.AuthProvider = "local"
	}
	query := `
	INSERT INTO users (username, email, password, auth_provider)
	VALUES (?, ?, ?, ?)`

	res, err := db.Exec(query, u.Username, u.Email, u.Password, u.AuthProvider)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	row := db.QueryRow(`
	SELECT id, username, email, password, auth_provider
	FROM users
	WHERE id = ?`, id)

	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.AuthProvider); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	row := db.QueryRow(`
	SELECT id, username, email, password, auth_provider
	FROM users
	WHERE email = ?`, email)

	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.AuthProvider); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreateUser finds the user owning the given email, creating the row on
// first sign-in. The caller is responsible for having allow-listed the email.
func GetOrCreateUser(db *sql.DB, email, username, authProvider string) (*User, error) {
	user, err := GetUserByEmail(db, email)
	if err == nil {
		return user, nil
	}
	if username == "" {
		username = email
	}
	newUser := &User{
		Username:     username,
		Email:        email,
		AuthProvider: authProvider,
	}
	if err := newUser.CreateUser(db); err != nil {
		return nil, err
	}
	return newUser, nil
}

func SetPasswordResetToken(db *sql.DB, userID int64, token string, expiresAt time.Time) error {
	_, err := db.Exec(`
	UPDATE users
	SET password_reset_token = ?, password_reset_token_expires_at = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, token, expiresAt, userID)
	return err
}

// GetUserByPasswordResetToken returns the user for an unexpired reset token.
func GetUserByPasswordResetToken(db *sql.DB, token string) (*User, error) {
	row := db.QueryRow(`
	SELECT id, username, email, password, auth_provider
	FROM users
	WHERE password_reset_token = ? AND password_reset_token_expires_at > ?`, token, time.Now())

	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.AuthProvider); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("invalid or expired password reset token")
		}
		return nil, err
	}
	return &user, nil
}

func UpdatePassword(db *sql.DB, userID int64, hashedPassword string) error {
	_, err := db.Exec(`
	UPDATE users
	SET password = ?, password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, hashedPassword, userID)
	return err
}

// CreateSession inserts a new session into the database.
func CreateSession(db *sql.DB, session *Session) error {
	query := `
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := db.Exec(query, session.UserID, session.Token, session.RefreshToken,
		session.UserAgent, session.ClientIP, session.IsBlocked, session.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	session.ID = id
	return nil
}

func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	row := db.QueryRow(`
	SELECT id, user_id, token, refresh_token, is_blocked, expires_at
	FROM sessions
	WHERE token = ? AND is_blocked = FALSE`, token)

	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.IsBlocked, &s.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &s, nil
}

func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	row := db.QueryRow(`
	SELECT id, user_id, token, refresh_token, is_blocked, expires_at
	FROM sessions
	WHERE refresh_token = ? AND is_blocked = FALSE`, refreshToken)

	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken, &s.IsBlocked, &s.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &s, nil
}

func UpdateSessionTokens(db *sql.DB, sessionID int64, token, refreshToken string, expiresAt time.Time) error {
	_, err := db.Exec(`
	UPDATE sessions
	SET token = ?, refresh_token = ?, expires_at = ?
	WHERE id = ?`, token, refreshToken, expiresAt, sessionID)
	return err
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}
