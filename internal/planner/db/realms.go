package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// RealmStore handles realm listings.
type RealmStore struct {
	db *DB
}

// NewRealmStore creates a new RealmStore.
func NewRealmStore(db *DB) *RealmStore {
	return &RealmStore{db: db}
}

// ListRealms lists the realms known for a region and game version, ordered
// by name.
func (s *RealmStore) ListRealms(ctx context.Context, region planner.Region, version planner.GameVersion) ([]planner.Realm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, name
		FROM realms
		WHERE region = ? AND game_version = ?
		ORDER BY name
	`, string(region), string(version))
	if err != nil {
		return nil, fmt.Errorf("querying realms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var realms []planner.Realm
	for rows.Next() {
		var r planner.Realm
		if err := rows.Scan(&r.Slug, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning realm: %w", err)
		}
		realms = append(realms, r)
	}

	return realms, rows.Err()
}

// UpsertRealms inserts or renames realms in a transaction.
func (s *RealmStore) UpsertRealms(ctx context.Context, region planner.Region, version planner.GameVersion, realms []planner.Realm) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO realms (region, game_version, slug, name)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(region, game_version, slug) DO UPDATE SET
				name = excluded.name
		`)
		if err != nil {
			return fmt.Errorf("preparing realm statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range realms {
			if _, err := stmt.ExecContext(ctx, string(region), string(version), r.Slug, r.Name); err != nil {
				return fmt.Errorf("upserting realm %s: %w", r.Slug, err)
			}
		}

		return nil
	})
}
