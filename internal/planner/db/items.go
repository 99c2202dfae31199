package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// ItemStore handles item name and vendor price data access.
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItemName retrieves an item's display name.
// Returns "" if the item is unknown.
func (s *ItemStore) GetItemName(ctx context.Context, version planner.GameVersion, itemID int) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM items WHERE game_version = ? AND item_id = ?
	`, string(version), itemID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying item name: %w", err)
	}
	return name, nil
}

// GetItemNames retrieves display names for the given items. Unknown items
// are absent from the result.
func (s *ItemStore) GetItemNames(ctx context.Context, version planner.GameVersion, itemIDs []int) (map[int]string, error) {
	if len(itemIDs) == 0 {
		return map[int]string{}, nil
	}

	placeholders := make([]string, len(itemIDs))
	args := make([]interface{}, 0, len(itemIDs)+1)
	args = append(args, string(version))
	for i, id := range itemIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT item_id, name
		FROM items
		WHERE game_version = ? AND item_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying item names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[int]string)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning item name: %w", err)
		}
		names[id] = name
	}

	return names, rows.Err()
}

// GetVendorPrices retrieves all vendor unit prices for a game version.
func (s *ItemStore) GetVendorPrices(ctx context.Context, version planner.GameVersion) (map[int]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, unit_price_copper
		FROM vendor_prices
		WHERE game_version = ?
	`, string(version))
	if err != nil {
		return nil, fmt.Errorf("querying vendor prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prices := make(map[int]int64)
	for rows.Next() {
		var id int
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scanning vendor price: %w", err)
		}
		prices[id] = price
	}

	return prices, rows.Err()
}

// BulkInsertItems inserts item names in a transaction.
func (s *ItemStore) BulkInsertItems(ctx context.Context, version planner.GameVersion, names map[int]string) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO items (game_version, item_id, name)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing item statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for id, name := range names {
			if _, err := stmt.ExecContext(ctx, string(version), id, name); err != nil {
				return fmt.Errorf("inserting item %d: %w", id, err)
			}
		}

		return nil
	})
}

// BulkInsertVendorPrices inserts vendor prices in a transaction.
func (s *ItemStore) BulkInsertVendorPrices(ctx context.Context, version planner.GameVersion, prices map[int]int64) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO vendor_prices (game_version, item_id, unit_price_copper)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing vendor price statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for id, price := range prices {
			if _, err := stmt.ExecContext(ctx, string(version), id, price); err != nil {
				return fmt.Errorf("inserting vendor price for %d: %w", id, err)
			}
		}

		return nil
	})
}
