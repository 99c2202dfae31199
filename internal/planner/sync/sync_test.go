package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

func decodeRecipeImport(t *testing.T, data string) RecipeImport {
	t.Helper()
	var imp RecipeImport
	if err := json.Unmarshal([]byte(data), &imp); err != nil {
		t.Fatalf("unmarshaling recipe import: %v", err)
	}
	return imp
}

func TestTransformRecipeExplicitFields(t *testing.T) {
	imp := decodeRecipeImport(t, `{
		"recipe_id": "2330",
		"name": "Minor Healing Potion",
		"profession_id": 171,
		"min_skill": 1,
		"orange_until": 15,
		"yellow_until": 35,
		"green_until": 45,
		"gray_at": 55,
		"reagents": [{"item_id": 765, "quantity": 1}],
		"output": {"item_id": 118, "quantity": 1}
	}`)

	recipe, err := transformRecipe(imp)
	if err != nil {
		t.Fatalf("transformRecipe failed: %v", err)
	}
	if recipe.RecipeID != "2330" || recipe.ProfessionID != 171 {
		t.Errorf("unexpected recipe: %+v", recipe)
	}
	if recipe.Kind != planner.ProducerCraft {
		t.Errorf("kind = %q, want default craft", recipe.Kind)
	}
	if recipe.GrayAt != 55 {
		t.Errorf("gray at = %d, want 55", recipe.GrayAt)
	}
	if recipe.Output == nil || recipe.Output.ItemID != 118 {
		t.Errorf("output = %+v", recipe.Output)
	}
}

func TestTransformRecipeAlternateSpellings(t *testing.T) {
	imp := decodeRecipeImport(t, `{
		"id": "smelt-bronze",
		"name": "Bronze Bar",
		"profession": 186,
		"type": "smelt",
		"learned_at": 50,
		"colors": [65, 75, 85, 95],
		"creates_item_id": 2841,
		"creates_count": 2,
		"reagents": [{"id": 2840, "count": 1}]
	}`)

	recipe, err := transformRecipe(imp)
	if err != nil {
		t.Fatalf("transformRecipe failed: %v", err)
	}
	if recipe.RecipeID != "smelt-bronze" || recipe.ProfessionID != 186 {
		t.Errorf("unexpected recipe: %+v", recipe)
	}
	if recipe.Kind != planner.ProducerSmelt {
		t.Errorf("kind = %q, want smelt", recipe.Kind)
	}
	if recipe.MinSkill != 50 || recipe.OrangeUntil != 65 || recipe.GrayAt != 95 {
		t.Errorf("thresholds = %+v", recipe)
	}
	if len(recipe.Reagents) != 1 || recipe.Reagents[0].ItemID != 2840 || recipe.Reagents[0].Quantity != 1 {
		t.Errorf("reagents = %+v", recipe.Reagents)
	}
	if recipe.Output == nil || recipe.Output.ItemID != 2841 || recipe.Output.Quantity != 2 {
		t.Errorf("output = %+v", recipe.Output)
	}
}

func TestTransformRecipeRejectsBadData(t *testing.T) {
	if _, err := transformRecipe(RecipeImport{Name: "nameless", GrayAt: 50}); err == nil {
		t.Error("missing recipe id must fail")
	}
	if _, err := transformRecipe(RecipeImport{ID: "x", Name: "no bands"}); err == nil {
		t.Error("missing color thresholds must fail")
	}
	if _, err := transformRecipe(RecipeImport{ID: "x", Name: "bad kind", Kind: "disenchant", GrayAt: 50}); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestParseSnapshotNestedRealm(t *testing.T) {
	data := `{
		"realm": {"region": "eu", "gameVersion": "vanilla", "slug": "everlook"},
		"provider": "nexushub",
		"scanned_at": "2026-08-31T12:00:00Z",
		"items": [
			{"itemId": 2447, "minBuyout": 120, "median": 150},
			{"itemId": 765, "minBuyout": 30},
			{"itemId": 0, "minBuyout": 5},
			{"itemId": 3371, "minBuyout": 0}
		]
	}`

	upload, err := ParseSnapshot([]byte(data))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	wantRealm := planner.RealmKey{
		Region:      planner.RegionEU,
		GameVersion: planner.VersionVanilla,
		RealmSlug:   "everlook",
	}
	if upload.RealmKey != wantRealm {
		t.Errorf("realm = %+v, want %+v", upload.RealmKey, wantRealm)
	}
	if upload.ProviderName != "nexushub" {
		t.Errorf("provider = %q", upload.ProviderName)
	}
	want := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if !upload.SnapshotAt.Equal(want) {
		t.Errorf("snapshot at = %v, want %v", upload.SnapshotAt, want)
	}
	// Entries without a usable id or buyout are skipped.
	if len(upload.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(upload.Items))
	}
	if upload.Items[0].MedianCopper == nil || *upload.Items[0].MedianCopper != 150 {
		t.Errorf("median = %v, want 150", upload.Items[0].MedianCopper)
	}
	if upload.Items[1].MedianCopper != nil {
		t.Errorf("median = %v, want nil", upload.Items[1].MedianCopper)
	}
}

func TestParseSnapshotCompactRealmAndUnixTimestamp(t *testing.T) {
	data := `{
		"realm": "us-tbc-faerlina",
		"timestamp": 1788081600,
		"auctions": [{"id": 2840, "min_buyout": 12}]
	}`

	upload, err := ParseSnapshot([]byte(data))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if upload.RealmKey.Region != planner.RegionUS || upload.RealmKey.RealmSlug != "faerlina" {
		t.Errorf("realm = %+v", upload.RealmKey)
	}
	if upload.ProviderName != "unknown" {
		t.Errorf("provider = %q, want unknown", upload.ProviderName)
	}
	if upload.SnapshotAt.IsZero() {
		t.Error("unix timestamp not parsed")
	}
	if len(upload.Items) != 1 || upload.Items[0].ItemID != 2840 {
		t.Errorf("items = %+v", upload.Items)
	}
}

func TestParseSnapshotRejectsBadData(t *testing.T) {
	cases := map[string]string{
		"invalid JSON":  `{"realm":`,
		"missing realm": `{"timestamp": 1788081600, "items": [{"id": 1, "min_buyout": 2}]}`,
		"no timestamp":  `{"realm": "eu-vanilla-everlook", "items": [{"id": 1, "min_buyout": 2}]}`,
		"no items":      `{"realm": "eu-vanilla-everlook", "timestamp": 1788081600, "items": []}`,
	}
	for name, data := range cases {
		if _, err := ParseSnapshot([]byte(data)); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestParseOwnedExportObjectForm(t *testing.T) {
	data := `{
		"realm": "eu-vanilla-everlook",
		"character": "Mixwell",
		"materials": {"765": 40, "2447": 10, "999": 0}
	}`

	export, err := ParseOwnedExport([]byte(data))
	if err != nil {
		t.Fatalf("ParseOwnedExport failed: %v", err)
	}
	if export.UserID != "Mixwell" {
		t.Errorf("user = %q", export.UserID)
	}
	if len(export.Owned) != 2 || export.Owned[765] != 40 {
		t.Errorf("owned = %v", export.Owned)
	}
}

func TestParseOwnedExportArrayForm(t *testing.T) {
	data := `{
		"region": "eu",
		"version": "vanilla",
		"realm_slug": "everlook",
		"user_id": "user-1",
		"items": [
			{"itemId": 765, "count": 15},
			{"itemId": 765, "count": 5},
			{"itemId": 2447, "qty": 3}
		]
	}`

	export, err := ParseOwnedExport([]byte(data))
	if err != nil {
		t.Fatalf("ParseOwnedExport failed: %v", err)
	}
	// Duplicate entries for one item accumulate (bank plus bags).
	if export.Owned[765] != 20 {
		t.Errorf("owned[765] = %d, want 20", export.Owned[765])
	}
	if export.Owned[2447] != 3 {
		t.Errorf("owned[2447] = %d, want 3", export.Owned[2447])
	}
}

func TestParseOwnedExportRequiresUser(t *testing.T) {
	data := `{"realm": "eu-vanilla-everlook", "materials": {"765": 1}}`
	if _, err := ParseOwnedExport([]byte(data)); err == nil {
		t.Error("missing user id must fail")
	}
}
