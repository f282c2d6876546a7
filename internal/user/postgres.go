package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cryptomind/analyst/models"
)

// PostgresStore keeps entitlements in a bot_users table. Per-user
// atomicity comes from single-statement updates: concurrent debits for
// one id serialize on the row lock instead of read-modify-write in the
// application.
type PostgresStore struct {
	db        *sql.DB
	freeLimit int
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewPostgresStore opens the connection and bootstraps the table.
func NewPostgresStore(params ConnectionParams, freeLimit int) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bot_users (
			user_id       BIGINT PRIMARY KEY,
			subscribed    BOOLEAN NOT NULL DEFAULT FALSE,
			analysis_used INTEGER NOT NULL DEFAULT 0,
			name          TEXT,
			username      TEXT
		)
	`); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{db: db, freeLimit: freeLimit}, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, id int64, name, username string) (*models.UserEntitlement, error) {
	// Existing rows stay untouched; only the defaults are inserted.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_users (user_id, subscribed, analysis_used, name, username)
		VALUES ($1, FALSE, 0, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, id, name, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	return s.get(ctx, id)
}

func (s *PostgresStore) get(ctx context.Context, id int64) (*models.UserEntitlement, error) {
	var (
		u              models.UserEntitlement
		name, username sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, subscribed, analysis_used, name, username
		FROM bot_users WHERE user_id = $1
	`, id).Scan(&u.ID, &u.Subscribed, &u.AnalysisUsed, &name, &username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	if name.Valid {
		u.Name = name.String
	}
	if username.Valid {
		u.Username = username.String
	}
	return &u, nil
}

func (s *PostgresStore) IsAuthorized(ctx context.Context, id int64) (bool, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// Unknown users still have their free tier ahead of them.
			return s.freeLimit > 0, nil
		}
		return false, err
	}
	return u.Subscribed || u.AnalysisUsed < s.freeLimit, nil
}

func (s *PostgresStore) DebitOnSuccess(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE bot_users
		SET analysis_used = analysis_used + 1
		WHERE user_id = $1 AND NOT subscribed
	`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Activate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bot_users SET subscribed = TRUE WHERE user_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if affected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.UserEntitlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, subscribed, analysis_used, name, username
		FROM bot_users ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	var users []models.UserEntitlement
	for rows.Next() {
		var (
			u              models.UserEntitlement
			name, username sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Subscribed, &u.AnalysisUsed, &name, &username); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		if name.Valid {
			u.Name = name.String
		}
		if username.Valid {
			u.Username = username.String
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return users, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
