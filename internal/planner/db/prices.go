package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// PriceStore handles market price snapshot access.
type PriceStore struct {
	db *DB
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *DB) *PriceStore {
	return &PriceStore{db: db}
}

// SnapshotItem is a single item's price record within an upload.
type SnapshotItem struct {
	ItemID          int
	MinBuyoutCopper int64
	MedianCopper    *int64
}

// SnapshotUpload is one full auction house scan for a realm.
type SnapshotUpload struct {
	RealmKey     planner.RealmKey
	ProviderName string
	SnapshotAt   time.Time
	Items        []SnapshotItem
}

// SaveSnapshot stores an upload and returns its generated id. The realm is
// recorded in the realms table so it appears in realm listings.
func (s *PriceStore) SaveSnapshot(ctx context.Context, upload SnapshotUpload) (string, error) {
	uploadID := uuid.NewString()

	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO price_snapshot_uploads
			(upload_id, region, game_version, realm_slug, provider_name, snapshot_at, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		`,
			uploadID,
			string(upload.RealmKey.Region),
			string(upload.RealmKey.GameVersion),
			upload.RealmKey.RealmSlug,
			upload.ProviderName,
			upload.SnapshotAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("inserting upload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO realms (region, game_version, slug, name)
			VALUES (?, ?, ?, ?)
		`,
			string(upload.RealmKey.Region),
			string(upload.RealmKey.GameVersion),
			upload.RealmKey.RealmSlug,
			upload.RealmKey.RealmSlug,
		)
		if err != nil {
			return fmt.Errorf("recording realm: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO price_snapshot_items
			(upload_id, item_id, min_buyout_copper, median_copper)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing snapshot item statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, item := range upload.Items {
			var median interface{}
			if item.MedianCopper != nil {
				median = *item.MedianCopper
			}
			if _, err := stmt.ExecContext(ctx, uploadID, item.ItemID, item.MinBuyoutCopper, median); err != nil {
				return fmt.Errorf("inserting snapshot item %d: %w", item.ItemID, err)
			}
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return uploadID, nil
}

// GetPrices reads the newest snapshot for a realm and returns the price
// summaries of the requested items. A realm without any upload yields an
// unsuccessful snapshot, not an error; items the snapshot never scanned
// are simply absent from the result.
func (s *PriceStore) GetPrices(ctx context.Context, realmKey planner.RealmKey, itemIDs []int, _ planner.PriceMode) (planner.PriceSnapshot, error) {
	var uploadID, providerName, snapshotAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT upload_id, provider_name, snapshot_at
		FROM price_snapshot_uploads
		WHERE region = ? AND game_version = ? AND realm_slug = ?
		ORDER BY snapshot_at DESC, upload_id DESC
		LIMIT 1
	`,
		string(realmKey.Region),
		string(realmKey.GameVersion),
		realmKey.RealmSlug,
	).Scan(&uploadID, &providerName, &snapshotAt)

	if err == sql.ErrNoRows {
		return planner.PriceSnapshot{
			Success:      false,
			ErrorCode:    "no_snapshot",
			ErrorMessage: fmt.Sprintf("no price snapshot uploaded for realm %s", realmKey),
		}, nil
	}
	if err != nil {
		return planner.PriceSnapshot{}, fmt.Errorf("querying latest upload: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, snapshotAt)
	if err != nil {
		return planner.PriceSnapshot{}, fmt.Errorf("parsing snapshot timestamp %q: %w", snapshotAt, err)
	}

	prices := make(map[int]planner.PriceSummary)
	if len(itemIDs) > 0 {
		placeholders := make([]string, len(itemIDs))
		args := make([]interface{}, 0, len(itemIDs)+1)
		args = append(args, uploadID)
		for i, id := range itemIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(`
			SELECT item_id, min_buyout_copper, median_copper
			FROM price_snapshot_items
			WHERE upload_id = ? AND item_id IN (%s)
		`, strings.Join(placeholders, ","))

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return planner.PriceSnapshot{}, fmt.Errorf("querying snapshot items: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var summary planner.PriceSummary
			var median sql.NullInt64
			if err := rows.Scan(&summary.ItemID, &summary.MinBuyoutCopper, &median); err != nil {
				return planner.PriceSnapshot{}, fmt.Errorf("scanning snapshot item: %w", err)
			}
			if median.Valid {
				v := median.Int64
				summary.MedianCopper = &v
			}
			summary.SnapshotTimestamp = ts
			summary.SourceProvider = providerName
			prices[summary.ItemID] = summary
		}
		if err := rows.Err(); err != nil {
			return planner.PriceSnapshot{}, err
		}
	}

	return planner.PriceSnapshot{
		Success:           true,
		ProviderName:      providerName,
		SnapshotTimestamp: ts,
		Prices:            prices,
	}, nil
}

// PruneOldUploads removes uploads whose snapshot is older than the cutoff.
// Snapshot items cascade with the upload.
func (s *PriceStore) PruneOldUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM price_snapshot_uploads
		WHERE snapshot_at < ?
	`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning old uploads: %w", err)
	}
	return result.RowsAffected()
}
