package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenAndInit(context.Background(), filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("OpenAndInit failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func testRealm() planner.RealmKey {
	return planner.RealmKey{
		Region:      planner.RegionEU,
		GameVersion: planner.VersionVanilla,
		RealmSlug:   "everlook",
	}
}

func TestOpenEnablesForeignKeysAndWAL(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	var foreignKeys int
	if err := database.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("reading foreign_keys pragma: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}

	var journalMode string
	if err := database.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("reading journal_mode pragma: %v", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}
}

func TestRecipeRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	store := NewRecipeStore(database)

	recipes := []planner.Recipe{
		{
			RecipeID: "2330", Name: "Minor Healing Potion", ProfessionID: 171,
			Kind: planner.ProducerCraft, MinSkill: 1,
			OrangeUntil: 15, YellowUntil: 35, GreenUntil: 45, GrayAt: 55,
			TrainerTaught: true,
			Reagents: []planner.Reagent{
				{ItemID: 765, Quantity: 1},
				{ItemID: 2447, Quantity: 1},
				{ItemID: 3371, Quantity: 1},
			},
			Output: &planner.RecipeOutput{ItemID: 118, Quantity: 1},
		},
		{
			RecipeID: "3920", Name: "Enchant Bracer", ProfessionID: 333,
			Kind: planner.ProducerCraft, MinSkill: 1,
			OrangeUntil: 70, YellowUntil: 80, GreenUntil: 90, GrayAt: 100,
			Reagents: []planner.Reagent{{ItemID: 10940, Quantity: 1}},
		},
	}
	if err := store.BulkInsertRecipes(ctx, planner.VersionVanilla, recipes); err != nil {
		t.Fatalf("BulkInsertRecipes failed: %v", err)
	}

	loaded, err := store.GetRecipes(ctx, planner.VersionVanilla, 171)
	if err != nil {
		t.Fatalf("GetRecipes failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("recipes for profession 171 = %d, want 1", len(loaded))
	}
	r := loaded[0]
	if r.RecipeID != "2330" || r.Name != "Minor Healing Potion" || !r.TrainerTaught {
		t.Errorf("unexpected recipe: %+v", r)
	}
	if len(r.Reagents) != 3 {
		t.Errorf("reagents = %d, want 3", len(r.Reagents))
	}
	if r.Output == nil || r.Output.ItemID != 118 {
		t.Errorf("output = %+v, want item 118", r.Output)
	}

	// Enchants carry no output item; the column stays null.
	single, err := store.GetRecipe(ctx, planner.VersionVanilla, "3920")
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}
	if single == nil || single.Output != nil {
		t.Errorf("enchant recipe = %+v, want nil output", single)
	}

	// Other game versions see nothing.
	other, err := store.GetRecipes(ctx, planner.VersionTBC, 171)
	if err != nil {
		t.Fatalf("GetRecipes(tbc) failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("tbc recipes = %d, want 0", len(other))
	}

	missing, err := store.GetRecipe(ctx, planner.VersionVanilla, "99999")
	if err != nil {
		t.Fatalf("GetRecipe(missing) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("missing recipe = %+v, want nil", missing)
	}
}

func TestReimportedRecipeDropsRemovedReagents(t *testing.T) {
	ctx := context.Background()
	store := NewRecipeStore(openTestDB(t))

	recipe := planner.Recipe{
		RecipeID: "2330", Name: "Minor Healing Potion", ProfessionID: 171,
		Kind: planner.ProducerCraft, MinSkill: 1,
		OrangeUntil: 15, YellowUntil: 35, GreenUntil: 45, GrayAt: 55,
		Reagents: []planner.Reagent{
			{ItemID: 765, Quantity: 1},
			{ItemID: 2447, Quantity: 1},
		},
	}
	if err := store.BulkInsertRecipes(ctx, planner.VersionVanilla, []planner.Recipe{recipe}); err != nil {
		t.Fatalf("BulkInsertRecipes failed: %v", err)
	}

	// A later datapack drops one reagent; the replaced recipe must not
	// keep the old reagent row around.
	recipe.Reagents = []planner.Reagent{{ItemID: 765, Quantity: 2}}
	if err := store.BulkInsertRecipes(ctx, planner.VersionVanilla, []planner.Recipe{recipe}); err != nil {
		t.Fatalf("BulkInsertRecipes (reimport) failed: %v", err)
	}

	loaded, err := store.GetRecipe(ctx, planner.VersionVanilla, "2330")
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}
	if loaded == nil || len(loaded.Reagents) != 1 {
		t.Fatalf("recipe after reimport = %+v, want exactly 1 reagent", loaded)
	}
	if loaded.Reagents[0].ItemID != 765 || loaded.Reagents[0].Quantity != 2 {
		t.Errorf("reagent = %+v, want item 765 x2", loaded.Reagents[0])
	}
}

func TestExcludedRecipeIDsReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewRecipeStore(openTestDB(t))

	if err := store.SetExcludedRecipeIDs(ctx, planner.VersionVanilla, 171, []string{"a", "b"}); err != nil {
		t.Fatalf("SetExcludedRecipeIDs failed: %v", err)
	}
	if err := store.SetExcludedRecipeIDs(ctx, planner.VersionVanilla, 171, []string{"c"}); err != nil {
		t.Fatalf("SetExcludedRecipeIDs (replace) failed: %v", err)
	}

	excluded, err := store.GetExcludedRecipeIDs(ctx, planner.VersionVanilla, 171)
	if err != nil {
		t.Fatalf("GetExcludedRecipeIDs failed: %v", err)
	}
	if len(excluded) != 1 || !excluded["c"] {
		t.Errorf("excluded = %v, want only %q", excluded, "c")
	}
}

func TestVendorPricesAndItemNames(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore(openTestDB(t))

	if err := store.BulkInsertItems(ctx, planner.VersionVanilla, map[int]string{
		2447: "Peacebloom",
		765:  "Silverleaf",
	}); err != nil {
		t.Fatalf("BulkInsertItems failed: %v", err)
	}
	if err := store.BulkInsertVendorPrices(ctx, planner.VersionVanilla, map[int]int64{3371: 20}); err != nil {
		t.Fatalf("BulkInsertVendorPrices failed: %v", err)
	}

	name, err := store.GetItemName(ctx, planner.VersionVanilla, 2447)
	if err != nil {
		t.Fatalf("GetItemName failed: %v", err)
	}
	if name != "Peacebloom" {
		t.Errorf("name = %q, want Peacebloom", name)
	}

	names, err := store.GetItemNames(ctx, planner.VersionVanilla, []int{765, 9999})
	if err != nil {
		t.Fatalf("GetItemNames failed: %v", err)
	}
	if len(names) != 1 || names[765] != "Silverleaf" {
		t.Errorf("names = %v", names)
	}

	vendor, err := store.GetVendorPrices(ctx, planner.VersionVanilla)
	if err != nil {
		t.Fatalf("GetVendorPrices failed: %v", err)
	}
	if vendor[3371] != 20 {
		t.Errorf("vendor price = %d, want 20", vendor[3371])
	}
}

func TestOwnedMaterialsReplace(t *testing.T) {
	ctx := context.Background()
	store := NewOwnedStore(openTestDB(t))
	realm := testRealm()

	if err := store.ReplaceOwned(ctx, realm, "user-1", map[int]int64{765: 40, 2447: 10}); err != nil {
		t.Fatalf("ReplaceOwned failed: %v", err)
	}
	if err := store.ReplaceOwned(ctx, realm, "user-1", map[int]int64{765: 5, 3371: 0}); err != nil {
		t.Fatalf("ReplaceOwned (replace) failed: %v", err)
	}

	owned, err := store.GetOwned(ctx, realm, "user-1")
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	if len(owned) != 1 || owned[765] != 5 {
		t.Errorf("owned = %v, want only item 765 x5", owned)
	}

	// Other users and realms stay isolated.
	otherUser, err := store.GetOwned(ctx, realm, "user-2")
	if err != nil {
		t.Fatalf("GetOwned(user-2) failed: %v", err)
	}
	if len(otherUser) != 0 {
		t.Errorf("other user owned = %v, want empty", otherUser)
	}
}

func TestGetPricesReadsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewPriceStore(openTestDB(t))
	realm := testRealm()

	median := int64(150)
	older := SnapshotUpload{
		RealmKey:     realm,
		ProviderName: "nexushub",
		SnapshotAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Items:        []SnapshotItem{{ItemID: 2447, MinBuyoutCopper: 99}},
	}
	newer := SnapshotUpload{
		RealmKey:     realm,
		ProviderName: "nexushub",
		SnapshotAt:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Items: []SnapshotItem{
			{ItemID: 2447, MinBuyoutCopper: 120, MedianCopper: &median},
			{ItemID: 765, MinBuyoutCopper: 30},
		},
	}
	if _, err := store.SaveSnapshot(ctx, older); err != nil {
		t.Fatalf("SaveSnapshot(older) failed: %v", err)
	}
	if _, err := store.SaveSnapshot(ctx, newer); err != nil {
		t.Fatalf("SaveSnapshot(newer) failed: %v", err)
	}

	snap, err := store.GetPrices(ctx, realm, []int{2447, 765, 9999}, planner.PriceModeMin)
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if !snap.Success {
		t.Fatalf("snapshot not successful: %+v", snap)
	}
	if !snap.SnapshotTimestamp.Equal(newer.SnapshotAt) {
		t.Errorf("timestamp = %v, want %v (newest upload wins)", snap.SnapshotTimestamp, newer.SnapshotAt)
	}
	if got := snap.Prices[2447].MinBuyoutCopper; got != 120 {
		t.Errorf("min buyout = %d, want 120", got)
	}
	if m := snap.Prices[2447].MedianCopper; m == nil || *m != 150 {
		t.Errorf("median = %v, want 150", m)
	}
	if _, ok := snap.Prices[9999]; ok {
		t.Error("unscanned item must be absent from prices")
	}
}

func TestGetPricesWithoutUpload(t *testing.T) {
	ctx := context.Background()
	store := NewPriceStore(openTestDB(t))

	snap, err := store.GetPrices(ctx, testRealm(), []int{2447}, planner.PriceModeMin)
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if snap.Success {
		t.Fatal("snapshot without upload must not be successful")
	}
	if snap.ErrorCode != "no_snapshot" {
		t.Errorf("error code = %q, want no_snapshot", snap.ErrorCode)
	}
}

func TestPruneOldUploadsRemovesSnapshotItems(t *testing.T) {
	ctx := context.Background()
	store := NewPriceStore(openTestDB(t))

	upload := SnapshotUpload{
		RealmKey:     testRealm(),
		ProviderName: "nexushub",
		SnapshotAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Items: []SnapshotItem{
			{ItemID: 2447, MinBuyoutCopper: 50},
			{ItemID: 765, MinBuyoutCopper: 30},
		},
	}
	if _, err := store.SaveSnapshot(ctx, upload); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	pruned, err := store.PruneOldUploads(ctx, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PruneOldUploads failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned uploads = %d, want 1", pruned)
	}

	var items int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_snapshot_items").Scan(&items); err != nil {
		t.Fatalf("counting snapshot items: %v", err)
	}
	if items != 0 {
		t.Errorf("snapshot items after prune = %d, want 0 (rows cascade with the upload)", items)
	}
}

func TestRealmListing(t *testing.T) {
	ctx := context.Background()
	store := NewRealmStore(openTestDB(t))

	realms := []planner.Realm{
		{Slug: "everlook", Name: "Everlook"},
		{Slug: "auberdine", Name: "Auberdine"},
	}
	if err := store.UpsertRealms(ctx, planner.RegionEU, planner.VersionVanilla, realms); err != nil {
		t.Fatalf("UpsertRealms failed: %v", err)
	}

	listed, err := store.ListRealms(ctx, planner.RegionEU, planner.VersionVanilla)
	if err != nil {
		t.Fatalf("ListRealms failed: %v", err)
	}
	if len(listed) != 2 || listed[0].Slug != "auberdine" {
		t.Errorf("realms = %+v, want 2 entries ordered by name", listed)
	}

	other, err := store.ListRealms(ctx, planner.RegionUS, planner.VersionVanilla)
	if err != nil {
		t.Fatalf("ListRealms(us) failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("us realms = %d, want 0", len(other))
	}
}

func TestSyncMetadata(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	value, err := database.GetSyncMetadata(ctx, "recipes_synced_at")
	if err != nil {
		t.Fatalf("GetSyncMetadata failed: %v", err)
	}
	if value != "" {
		t.Errorf("unset key = %q, want empty", value)
	}

	if err := database.SetSyncMetadata(ctx, "recipes_synced_at", "2026-08-31"); err != nil {
		t.Fatalf("SetSyncMetadata failed: %v", err)
	}
	if err := database.SetSyncMetadata(ctx, "recipes_synced_at", "2026-09-01"); err != nil {
		t.Fatalf("SetSyncMetadata (update) failed: %v", err)
	}

	value, err = database.GetSyncMetadata(ctx, "recipes_synced_at")
	if err != nil {
		t.Fatalf("GetSyncMetadata failed: %v", err)
	}
	if value != "2026-09-01" {
		t.Errorf("value = %q, want 2026-09-01", value)
	}
}
