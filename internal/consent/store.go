package consent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// StoreService is the persistent grant registry backing serve mode. It
// implements Service; Grant/Revoke are exposed for channel adapters and
// account tooling.
type StoreService struct {
	db *sql.DB
}

// NewStoreService opens (creating if needed) the consent database at dbPath.
func NewStoreService(dbPath string) (*StoreService, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening consent database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS consent_grants (
		user_id TEXT NOT NULL,
		purpose TEXT NOT NULL,
		granted_at TIMESTAMP NOT NULL,
		revoked_at TIMESTAMP,
		PRIMARY KEY (user_id, purpose)
	);

	CREATE INDEX IF NOT EXISTS idx_consent_user ON consent_grants(user_id);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating consent schema: %w", err)
	}

	return &StoreService{db: db}, nil
}

// Close releases the database connection.
func (s *StoreService) Close() error {
	return s.db.Close()
}

// Grant records consent for a user/purpose pair, reviving a revoked grant.
func (s *StoreService) Grant(ctx context.Context, userID, purpose string) error {
	query := `INSERT INTO consent_grants (user_id, purpose, granted_at, revoked_at)
	          VALUES (?, ?, ?, NULL)
	          ON CONFLICT(user_id, purpose) DO UPDATE SET granted_at = excluded.granted_at, revoked_at = NULL`
	if _, err := s.db.ExecContext(ctx, query, userID, purpose, time.Now()); err != nil {
		return fmt.Errorf("recording consent grant: %w", err)
	}
	return nil
}

// Revoke withdraws consent. Revoked rows are kept so the grant history
// stays reconstructable.
func (s *StoreService) Revoke(ctx context.Context, userID, purpose string) error {
	query := `UPDATE consent_grants SET revoked_at = ? WHERE user_id = ? AND purpose = ?`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), userID, purpose); err != nil {
		return fmt.Errorf("recording consent revocation: %w", err)
	}
	return nil
}

// Check implements Service. The necessary purpose needs no stored grant.
func (s *StoreService) Check(ctx context.Context, userID, purpose, _ string) (bool, error) {
	if purpose == "necessary" {
		return true, nil
	}
	var n int
	query := `SELECT COUNT(1) FROM consent_grants WHERE user_id = ? AND purpose = ? AND revoked_at IS NULL`
	if err := s.db.QueryRowContext(ctx, query, userID, purpose).Scan(&n); err != nil {
		return false, fmt.Errorf("querying consent grants: %w", err)
	}
	return n > 0, nil
}
