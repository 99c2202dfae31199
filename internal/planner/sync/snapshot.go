package sync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ahplanner/planner-server/internal/planner/db"
	"github.com/ahplanner/planner-server/pkg/planner"
)

// Snapshot and owned-material exports come from third-party scan tools and
// addons with no shared schema. They are parsed with gjson so each field
// can be probed under its known spellings without modeling every variant.

// firstString returns the first non-empty string among the given paths.
func firstString(doc gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := doc.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// firstInt returns the first present integer among the given paths.
func firstInt(doc gjson.Result, paths ...string) (int64, bool) {
	for _, path := range paths {
		if v := doc.Get(path); v.Exists() {
			return v.Int(), true
		}
	}
	return 0, false
}

// parseRealmKey extracts the realm identity from an export document. Scan
// tools either nest it under "realm" or write a single "realm" string in
// the region-version-slug form.
func parseRealmKey(doc gjson.Result) (planner.RealmKey, error) {
	if realm := doc.Get("realm"); realm.Exists() && realm.Type == gjson.String {
		return planner.ParseRealmKey(realm.String())
	}

	region, err := planner.ParseRegion(firstString(doc, "realm.region", "region"))
	if err != nil {
		return planner.RealmKey{}, err
	}
	version, err := planner.ParseGameVersion(firstString(doc,
		"realm.game_version", "realm.gameVersion", "realm.version",
		"game_version", "gameVersion", "version"))
	if err != nil {
		return planner.RealmKey{}, err
	}
	slug := firstString(doc, "realm.slug", "realm.name", "realm_slug", "realmSlug")
	if slug == "" {
		return planner.RealmKey{}, fmt.Errorf("missing realm slug")
	}

	return planner.RealmKey{Region: region, GameVersion: version, RealmSlug: slug}, nil
}

// parseTimestamp accepts RFC3339 strings or unix seconds.
func parseTimestamp(v gjson.Result) (time.Time, error) {
	if v.Type == gjson.Number {
		return time.Unix(v.Int(), 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", v.String(), err)
	}
	return ts, nil
}

// ParseSnapshot parses a price snapshot export into an upload.
func ParseSnapshot(data []byte) (db.SnapshotUpload, error) {
	if !gjson.ValidBytes(data) {
		return db.SnapshotUpload{}, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	realmKey, err := parseRealmKey(doc)
	if err != nil {
		return db.SnapshotUpload{}, fmt.Errorf("parsing realm: %w", err)
	}

	upload := db.SnapshotUpload{
		RealmKey:     realmKey,
		ProviderName: firstString(doc, "provider", "provider_name", "source"),
	}
	if upload.ProviderName == "" {
		upload.ProviderName = "unknown"
	}

	tsField := doc.Get("scanned_at")
	for _, path := range []string{"snapshot_at", "scannedAt", "timestamp"} {
		if tsField.Exists() {
			break
		}
		tsField = doc.Get(path)
	}
	if !tsField.Exists() {
		return db.SnapshotUpload{}, fmt.Errorf("missing snapshot timestamp")
	}
	upload.SnapshotAt, err = parseTimestamp(tsField)
	if err != nil {
		return db.SnapshotUpload{}, err
	}

	items := doc.Get("items")
	if !items.Exists() {
		items = doc.Get("auctions")
	}
	if !items.IsArray() {
		return db.SnapshotUpload{}, fmt.Errorf("missing items array")
	}

	items.ForEach(func(_, item gjson.Result) bool {
		itemID, ok := firstInt(item, "item_id", "itemId", "id")
		if !ok || itemID <= 0 {
			return true
		}
		minBuyout, ok := firstInt(item, "min_buyout_copper", "min_buyout", "minBuyout")
		if !ok || minBuyout <= 0 {
			return true
		}

		record := db.SnapshotItem{
			ItemID:          int(itemID),
			MinBuyoutCopper: minBuyout,
		}
		if median, ok := firstInt(item, "median_copper", "median", "medianBuyout"); ok && median > 0 {
			record.MedianCopper = &median
		}
		upload.Items = append(upload.Items, record)
		return true
	})
	if len(upload.Items) == 0 {
		return db.SnapshotUpload{}, fmt.Errorf("snapshot carries no usable items")
	}

	return upload, nil
}

// OwnedExport is a parsed owned-materials addon export.
type OwnedExport struct {
	RealmKey planner.RealmKey
	UserID   string
	Owned    map[int]int64
}

// ParseOwnedExport parses an owned-materials addon export. The inventory
// may be an object of item id to count or an array of entries.
func ParseOwnedExport(data []byte) (OwnedExport, error) {
	if !gjson.ValidBytes(data) {
		return OwnedExport{}, fmt.Errorf("invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	realmKey, err := parseRealmKey(doc)
	if err != nil {
		return OwnedExport{}, fmt.Errorf("parsing realm: %w", err)
	}

	export := OwnedExport{
		RealmKey: realmKey,
		UserID:   firstString(doc, "user_id", "userId", "character", "player"),
		Owned:    make(map[int]int64),
	}
	if export.UserID == "" {
		return OwnedExport{}, fmt.Errorf("missing user id")
	}

	inventory := doc.Get("owned")
	for _, path := range []string{"materials", "items", "inventory"} {
		if inventory.Exists() {
			break
		}
		inventory = doc.Get(path)
	}
	if !inventory.Exists() {
		return OwnedExport{}, fmt.Errorf("missing inventory")
	}

	if inventory.IsArray() {
		inventory.ForEach(func(_, entry gjson.Result) bool {
			itemID, ok := firstInt(entry, "item_id", "itemId", "id")
			if !ok || itemID <= 0 {
				return true
			}
			quantity, ok := firstInt(entry, "quantity", "count", "qty")
			if ok && quantity > 0 {
				export.Owned[int(itemID)] += quantity
			}
			return true
		})
	} else {
		inventory.ForEach(func(key, value gjson.Result) bool {
			itemID := key.Int()
			if itemID > 0 && value.Int() > 0 {
				export.Owned[int(itemID)] += value.Int()
			}
			return true
		})
	}

	return export, nil
}

// ImportSnapshotFromFile imports a price snapshot export and returns the
// stored upload id.
func (s *Syncer) ImportSnapshotFromFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	upload, err := ParseSnapshot(data)
	if err != nil {
		return "", fmt.Errorf("parsing snapshot: %w", err)
	}

	store := db.NewPriceStore(s.db)
	uploadID, err := store.SaveSnapshot(ctx, upload)
	if err != nil {
		return "", fmt.Errorf("saving snapshot: %w", err)
	}

	if err := s.db.SetSyncMetadata(ctx, "snapshot_last_sync", time.Now().Format(time.RFC3339)); err != nil {
		return "", err
	}

	return uploadID, nil
}

// ImportOwnedFromFile imports an owned-materials addon export, replacing
// the user's stored inventory on that realm.
func (s *Syncer) ImportOwnedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	export, err := ParseOwnedExport(data)
	if err != nil {
		return fmt.Errorf("parsing owned export: %w", err)
	}

	store := db.NewOwnedStore(s.db)
	if err := store.ReplaceOwned(ctx, export.RealmKey, export.UserID, export.Owned); err != nil {
		return fmt.Errorf("replacing owned materials: %w", err)
	}

	return nil
}
