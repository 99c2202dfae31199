// Package sync handles importing game data and price snapshots into the
// planner database.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ahplanner/planner-server/internal/planner/db"
	"github.com/ahplanner/planner-server/pkg/planner"
)

// Syncer handles data imports.
type Syncer struct {
	db *db.DB
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB) *Syncer {
	return &Syncer{db: database}
}

// RecipeImport represents the expected format of a recipe datapack entry.
// Community datapacks disagree on field names, so alternates are accepted.
type RecipeImport struct {
	ID       string `json:"id,omitempty"`
	RecipeID string `json:"recipe_id,omitempty"`
	Name     string `json:"name"`

	ProfessionID int    `json:"profession_id,omitempty"`
	Profession   int    `json:"profession,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Type         string `json:"type,omitempty"`

	MinSkill  int `json:"min_skill,omitempty"`
	LearnedAt int `json:"learned_at,omitempty"`

	// Color band thresholds; either the full set or the compact array
	// [orange, yellow, green, gray].
	OrangeUntil int   `json:"orange_until,omitempty"`
	YellowUntil int   `json:"yellow_until,omitempty"`
	GreenUntil  int   `json:"green_until,omitempty"`
	GrayAt      int   `json:"gray_at,omitempty"`
	Colors      []int `json:"colors,omitempty"`

	TrainerTaught bool `json:"trainer_taught,omitempty"`
	CooldownSec   int  `json:"cooldown_sec,omitempty"`

	Reagents []struct {
		ItemID   int `json:"item_id,omitempty"`
		ID       int `json:"id,omitempty"`
		Quantity int `json:"quantity,omitempty"`
		Count    int `json:"count,omitempty"`
	} `json:"reagents,omitempty"`

	Output struct {
		ItemID   int `json:"item_id,omitempty"`
		ID       int `json:"id,omitempty"`
		Quantity int `json:"quantity,omitempty"`
	} `json:"output,omitempty"`
	CreatesItemID int `json:"creates_item_id,omitempty"`
	CreatesCount  int `json:"creates_count,omitempty"`
}

// ProfessionImport represents a profession datapack entry.
type ProfessionImport struct {
	ID           int    `json:"id,omitempty"`
	ProfessionID int    `json:"profession_id,omitempty"`
	Name         string `json:"name"`
}

// ImportRecipesFromFile imports a recipe datapack for a game version.
func (s *Syncer) ImportRecipesFromFile(ctx context.Context, version planner.GameVersion, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var pack struct {
		Professions []ProfessionImport `json:"professions,omitempty"`
		Recipes     []RecipeImport     `json:"recipes,omitempty"`
	}
	if err := json.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	store := db.NewRecipeStore(s.db)

	if len(pack.Professions) > 0 {
		professions := make([]planner.Profession, 0, len(pack.Professions))
		for _, imp := range pack.Professions {
			professions = append(professions, transformProfession(imp))
		}
		if err := store.BulkInsertProfessions(ctx, version, professions); err != nil {
			return fmt.Errorf("inserting professions: %w", err)
		}
	}

	recipes := make([]planner.Recipe, 0, len(pack.Recipes))
	for _, imp := range pack.Recipes {
		recipe, err := transformRecipe(imp)
		if err != nil {
			return fmt.Errorf("recipe %q: %w", imp.Name, err)
		}
		recipes = append(recipes, recipe)
	}
	if err := store.BulkInsertRecipes(ctx, version, recipes); err != nil {
		return fmt.Errorf("inserting recipes: %w", err)
	}

	// Update sync metadata
	if err := s.db.SetSyncMetadata(ctx, "recipes_last_sync", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := s.db.SetSyncMetadata(ctx, "recipes_count", fmt.Sprintf("%d", len(recipes))); err != nil {
		return err
	}

	return nil
}

// ImportItemsFromFile imports item names and vendor prices for a game
// version. Both sections are optional.
func (s *Syncer) ImportItemsFromFile(ctx context.Context, version planner.GameVersion, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var pack struct {
		Items []struct {
			ItemID           int    `json:"item_id,omitempty"`
			ID               int    `json:"id,omitempty"`
			Name             string `json:"name"`
			VendorPrice      int64  `json:"vendor_price,omitempty"`
			VendorUnitCopper int64  `json:"vendor_unit_copper,omitempty"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	names := make(map[int]string, len(pack.Items))
	vendor := make(map[int]int64)
	for _, imp := range pack.Items {
		id := imp.ItemID
		if id == 0 {
			id = imp.ID
		}
		if id == 0 {
			continue
		}
		if imp.Name != "" {
			names[id] = imp.Name
		}
		price := imp.VendorUnitCopper
		if price == 0 {
			price = imp.VendorPrice
		}
		if price > 0 {
			vendor[id] = price
		}
	}

	store := db.NewItemStore(s.db)
	if err := store.BulkInsertItems(ctx, version, names); err != nil {
		return fmt.Errorf("inserting items: %w", err)
	}
	if err := store.BulkInsertVendorPrices(ctx, version, vendor); err != nil {
		return fmt.Errorf("inserting vendor prices: %w", err)
	}

	return s.db.SetSyncMetadata(ctx, "items_last_sync", time.Now().Format(time.RFC3339))
}

// ImportRealmsFromFile imports the realm list for a region and game version.
func (s *Syncer) ImportRealmsFromFile(ctx context.Context, region planner.Region, version planner.GameVersion, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var imports []struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &imports); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	realms := make([]planner.Realm, 0, len(imports))
	for _, imp := range imports {
		if imp.Slug == "" {
			continue
		}
		name := imp.Name
		if name == "" {
			name = imp.Slug
		}
		realms = append(realms, planner.Realm{Slug: imp.Slug, Name: name})
	}

	store := db.NewRealmStore(s.db)
	if err := store.UpsertRealms(ctx, region, version, realms); err != nil {
		return fmt.Errorf("upserting realms: %w", err)
	}

	return nil
}

// transformProfession converts import format to domain format.
func transformProfession(imp ProfessionImport) planner.Profession {
	id := imp.ProfessionID
	if id == 0 {
		id = imp.ID
	}
	return planner.Profession{ProfessionID: id, Name: imp.Name}
}

// transformRecipe converts import format to domain format.
func transformRecipe(imp RecipeImport) (planner.Recipe, error) {
	recipe := planner.Recipe{
		RecipeID:      imp.RecipeID,
		Name:          imp.Name,
		TrainerTaught: imp.TrainerTaught,
		CooldownSec:   imp.CooldownSec,
	}
	if recipe.RecipeID == "" {
		recipe.RecipeID = imp.ID
	}
	if recipe.RecipeID == "" {
		return planner.Recipe{}, fmt.Errorf("missing recipe id")
	}

	recipe.ProfessionID = imp.ProfessionID
	if recipe.ProfessionID == 0 {
		recipe.ProfessionID = imp.Profession
	}

	kind := imp.Kind
	if kind == "" {
		kind = imp.Type
	}
	if kind == "" {
		kind = string(planner.ProducerCraft)
	}
	recipe.Kind = planner.ProducerKind(kind)
	if !recipe.Kind.IsValid() {
		return planner.Recipe{}, fmt.Errorf("unknown recipe kind %q", kind)
	}

	recipe.MinSkill = imp.MinSkill
	if recipe.MinSkill == 0 {
		recipe.MinSkill = imp.LearnedAt
	}

	// Thresholds - prefer explicit fields, fall back to the compact array
	recipe.OrangeUntil = imp.OrangeUntil
	recipe.YellowUntil = imp.YellowUntil
	recipe.GreenUntil = imp.GreenUntil
	recipe.GrayAt = imp.GrayAt
	if recipe.GrayAt == 0 && len(imp.Colors) == 4 {
		recipe.OrangeUntil = imp.Colors[0]
		recipe.YellowUntil = imp.Colors[1]
		recipe.GreenUntil = imp.Colors[2]
		recipe.GrayAt = imp.Colors[3]
	}
	if recipe.GrayAt == 0 {
		return planner.Recipe{}, fmt.Errorf("missing color thresholds")
	}

	for _, r := range imp.Reagents {
		itemID := r.ItemID
		if itemID == 0 {
			itemID = r.ID
		}
		if itemID == 0 {
			continue
		}
		quantity := r.Quantity
		if quantity == 0 {
			quantity = r.Count
		}
		recipe.Reagents = append(recipe.Reagents, planner.Reagent{
			ItemID:   itemID,
			Quantity: quantity,
		})
	}

	// Handle output - try multiple field names
	outputItemID := imp.Output.ItemID
	if outputItemID == 0 {
		outputItemID = imp.Output.ID
	}
	outputQuantity := imp.Output.Quantity
	if outputItemID == 0 {
		outputItemID = imp.CreatesItemID
		outputQuantity = imp.CreatesCount
	}
	if outputItemID != 0 {
		if outputQuantity == 0 {
			outputQuantity = 1
		}
		recipe.Output = &planner.RecipeOutput{
			ItemID:   outputItemID,
			Quantity: outputQuantity,
		}
	}

	return recipe, nil
}
