package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// OwnedStore handles per-user owned material inventories.
type OwnedStore struct {
	db *DB
}

// NewOwnedStore creates a new OwnedStore.
func NewOwnedStore(db *DB) *OwnedStore {
	return &OwnedStore{db: db}
}

// GetOwned retrieves a user's owned materials on a realm.
func (s *OwnedStore) GetOwned(ctx context.Context, realmKey planner.RealmKey, userID string) (map[int]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, quantity
		FROM owned_materials
		WHERE region = ? AND game_version = ? AND realm_slug = ? AND user_id = ?
	`,
		string(realmKey.Region),
		string(realmKey.GameVersion),
		realmKey.RealmSlug,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying owned materials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	owned := make(map[int]int64)
	for rows.Next() {
		var itemID int
		var quantity int64
		if err := rows.Scan(&itemID, &quantity); err != nil {
			return nil, fmt.Errorf("scanning owned material: %w", err)
		}
		owned[itemID] = quantity
	}

	return owned, rows.Err()
}

// ReplaceOwned replaces a user's owned materials on a realm with the given
// inventory. Non-positive quantities are dropped.
func (s *OwnedStore) ReplaceOwned(ctx context.Context, realmKey planner.RealmKey, userID string, owned map[int]int64) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM owned_materials
			WHERE region = ? AND game_version = ? AND realm_slug = ? AND user_id = ?
		`,
			string(realmKey.Region),
			string(realmKey.GameVersion),
			realmKey.RealmSlug,
			userID,
		)
		if err != nil {
			return fmt.Errorf("clearing owned materials: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO owned_materials
			(region, game_version, realm_slug, user_id, item_id, quantity)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing owned material statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for itemID, quantity := range owned {
			if quantity <= 0 {
				continue
			}
			_, err := stmt.ExecContext(ctx,
				string(realmKey.Region),
				string(realmKey.GameVersion),
				realmKey.RealmSlug,
				userID,
				itemID,
				quantity,
			)
			if err != nil {
				return fmt.Errorf("inserting owned material %d: %w", itemID, err)
			}
		}

		return nil
	})
}
