package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SaveClusterSnapshot persists a point-in-time cluster-resources view, so a
// restart has something to show before the first poll completes.
func (s *Store) SaveClusterSnapshot(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal cluster snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cluster_snapshots (id, payload, created_at) VALUES (?, ?, ?)`,
		uuid.NewString(), string(data), nowRFC3339())
	if err != nil {
		return fmt.Errorf("store: save cluster snapshot: %w", err)
	}
	return nil
}

// LatestClusterSnapshot decodes the most recently saved snapshot payload into
// out. If none has ever been saved it returns nil and leaves out unchanged.
func (s *Store) LatestClusterSnapshot(ctx context.Context, out any) error {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM cluster_snapshots ORDER BY created_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: load latest cluster snapshot: %w", err)
	}
	return json.Unmarshal([]byte(payload), out)
}
