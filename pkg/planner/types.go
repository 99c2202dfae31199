// Package planner contains the core types for the profession leveling planner.
package planner

import (
	"fmt"
	"strings"
	"time"
)

// ============================================
// ENUM TYPES
// ============================================

// GameVersion identifies a game release the recipe data belongs to.
type GameVersion string

const (
	VersionVanilla GameVersion = "vanilla"
	VersionTBC     GameVersion = "tbc"
	VersionWrath   GameVersion = "wrath"
)

// ValidGameVersions returns all known game versions.
func ValidGameVersions() []GameVersion {
	return []GameVersion{VersionVanilla, VersionTBC, VersionWrath}
}

// IsValid checks if the version is a known game version.
func (v GameVersion) IsValid() bool {
	for _, valid := range ValidGameVersions() {
		if v == valid {
			return true
		}
	}
	return false
}

// ParseGameVersion parses a game version string (case-insensitive).
func ParseGameVersion(s string) (GameVersion, error) {
	v := GameVersion(strings.ToLower(strings.TrimSpace(s)))
	if !v.IsValid() {
		return "", fmt.Errorf("invalid game version %q", s)
	}
	return v, nil
}

// Region identifies a game region.
type Region string

const (
	RegionEU Region = "eu"
	RegionUS Region = "us"
)

// ValidRegions returns all known regions.
func ValidRegions() []Region {
	return []Region{RegionEU, RegionUS}
}

// IsValid checks if the region is known.
func (r Region) IsValid() bool {
	for _, valid := range ValidRegions() {
		if r == valid {
			return true
		}
	}
	return false
}

// ParseRegion parses a region string (case-insensitive).
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid region %q", s)
	}
	return r, nil
}

// PriceMode selects which market figure is used when both are known.
type PriceMode string

const (
	PriceModeMin    PriceMode = "min"
	PriceModeMedian PriceMode = "median"
)

// IsValid checks if the price mode is known.
func (m PriceMode) IsValid() bool {
	return m == PriceModeMin || m == PriceModeMedian
}

// ParsePriceMode parses a price mode string (case-insensitive).
func ParsePriceMode(s string) (PriceMode, error) {
	m := PriceMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid price mode %q", s)
	}
	return m, nil
}

// ProducerKind distinguishes how a recipe manufactures its output.
type ProducerKind string

const (
	ProducerCraft ProducerKind = "craft"
	ProducerSmelt ProducerKind = "smelt"
)

// IsValid checks if the kind is a known producer kind.
func (k ProducerKind) IsValid() bool {
	return k == ProducerCraft || k == ProducerSmelt
}

// AcquisitionSource identifies where a shopping-list item comes from.
type AcquisitionSource string

const (
	SourceVendor     AcquisitionSource = "vendor"
	SourceMarket     AcquisitionSource = "market"
	SourceUnresolved AcquisitionSource = "unresolved"
)

// ============================================
// REALM TYPES
// ============================================

// RealmKey identifies a realm's market: region, game version and realm slug.
type RealmKey struct {
	Region      Region      `json:"region"`
	GameVersion GameVersion `json:"game_version"`
	RealmSlug   string      `json:"realm_slug"`
}

// String returns the canonical "region-version-slug" form used as a storage key.
func (k RealmKey) String() string {
	return fmt.Sprintf("%s-%s-%s", k.Region, k.GameVersion, k.RealmSlug)
}

// ParseRealmKey parses the canonical "region-version-slug" form.
func ParseRealmKey(s string) (RealmKey, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 || parts[2] == "" {
		return RealmKey{}, fmt.Errorf("invalid realm key %q", s)
	}
	region, err := ParseRegion(parts[0])
	if err != nil {
		return RealmKey{}, err
	}
	version, err := ParseGameVersion(parts[1])
	if err != nil {
		return RealmKey{}, err
	}
	return RealmKey{Region: region, GameVersion: version, RealmSlug: parts[2]}, nil
}

// Realm is a named realm within a region and game version.
type Realm struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// ============================================
// RECIPE TYPES
// ============================================

// Profession is a crafting profession within a game version.
type Profession struct {
	ProfessionID int    `json:"profession_id"`
	Name         string `json:"name"`
}

// Reagent is a required input item for a recipe.
type Reagent struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

// RecipeOutput is what a recipe produces, if it produces an item at all.
type RecipeOutput struct {
	ItemID   int `json:"item_id"`
	Quantity int `json:"quantity"`
}

// Recipe is a craftable entry in a profession's recipe list.
//
// Skill thresholds are inclusive upper bounds per color band: the recipe is
// orange (guaranteed skill-up) through OrangeUntil, yellow through
// YellowUntil, green through GreenUntil, and gray (no skill-up) at and
// after GrayAt.
type Recipe struct {
	RecipeID      string        `json:"recipe_id"`
	Name          string        `json:"name"`
	ProfessionID  int           `json:"profession_id"`
	Kind          ProducerKind  `json:"kind"`
	MinSkill      int           `json:"min_skill"`
	OrangeUntil   int           `json:"orange_until"`
	YellowUntil   int           `json:"yellow_until"`
	GreenUntil    int           `json:"green_until"`
	GrayAt        int           `json:"gray_at"`
	Reagents      []Reagent     `json:"reagents"`
	Output        *RecipeOutput `json:"output,omitempty"`
	TrainerTaught bool          `json:"trainer_taught,omitempty"`
	CooldownSec   int           `json:"cooldown_sec,omitempty"`
}

// ============================================
// PRICE TYPES
// ============================================

// PriceSummary is the market price data for one item in a snapshot.
type PriceSummary struct {
	ItemID            int       `json:"item_id"`
	MinBuyoutCopper   int64     `json:"min_buyout_copper"`
	MedianCopper      *int64    `json:"median_copper,omitempty"`
	SnapshotTimestamp time.Time `json:"snapshot_timestamp"`
	SourceProvider    string    `json:"source_provider"`
}

// ValueFor returns the market figure selected by the price mode.
// Falls back to min buyout when no median is recorded.
func (p PriceSummary) ValueFor(mode PriceMode) int64 {
	if mode == PriceModeMedian && p.MedianCopper != nil {
		return *p.MedianCopper
	}
	return p.MinBuyoutCopper
}

// PriceSnapshot is the result of a price provider lookup for one realm.
type PriceSnapshot struct {
	Success           bool                 `json:"success"`
	ProviderName      string               `json:"provider_name"`
	SnapshotTimestamp time.Time            `json:"snapshot_timestamp"`
	IsStale           bool                 `json:"is_stale"`
	Prices            map[int]PriceSummary `json:"prices,omitempty"`
	ErrorCode         string               `json:"error_code,omitempty"`
	ErrorMessage      string               `json:"error_message,omitempty"`
}

// ============================================
// PLAN REQUEST/RESULT TYPES
// ============================================

// PlanRequest is the input for a plan computation.
//
// OwnedMaterials and ExcludedRecipeIDs are fully resolved by the caller;
// the optimizer never fetches data mid-computation.
type PlanRequest struct {
	RealmKey              RealmKey        `json:"realm_key"`
	ProfessionID          int             `json:"profession_id"`
	CurrentSkill          int             `json:"current_skill"`
	TargetSkill           int             `json:"target_skill"`
	PriceMode             PriceMode       `json:"price_mode"`
	UseCraftIntermediates bool            `json:"use_craft_intermediates"`
	UseSmeltIntermediates bool            `json:"use_smelt_intermediates"`
	UseOwnedMaterials     bool            `json:"use_owned_materials"`
	OwnedMaterials        map[int]int64   `json:"owned_materials,omitempty"`
	ExcludedRecipeIDs     map[string]bool `json:"excluded_recipe_ids,omitempty"`
}

// PlanStep is one recipe applied repeatedly to move skill forward.
type PlanStep struct {
	RecipeID           string  `json:"recipe_id"`
	RecipeName         string  `json:"recipe_name"`
	SkillFrom          int     `json:"skill_from"`
	SkillTo            int     `json:"skill_to"`
	SkillUpChance      float64 `json:"skill_up_chance"`
	ExpectedCrafts     float64 `json:"expected_crafts"`
	ExpectedCostCopper float64 `json:"expected_cost_copper"`
}

// StepIntermediateLine is an item the plan proposes to craft or smelt
// itself while executing one step.
type StepIntermediateLine struct {
	ItemID            int          `json:"item_id"`
	RequiredQuantity  float64      `json:"required_quantity"`
	OwnedUsedQuantity float64      `json:"owned_used_quantity"`
	ToProduceQuantity float64      `json:"to_produce_quantity"`
	Kind              ProducerKind `json:"kind"`
	ProducerName      string       `json:"producer_name"`
}

// StepAcquireLine is an item the plan proposes to buy for one step.
type StepAcquireLine struct {
	ItemID            int               `json:"item_id"`
	RequiredQuantity  float64           `json:"required_quantity"`
	OwnedUsedQuantity float64           `json:"owned_used_quantity"`
	AcquireQuantity   float64           `json:"acquire_quantity"`
	Source            AcquisitionSource `json:"source"`
	UnitPriceCopper   int64             `json:"unit_price_copper"`
}

// StepBreakdown lists a step's intermediate actions and acquisitions.
type StepBreakdown struct {
	StepIndex     int                    `json:"step_index"`
	Intermediates []StepIntermediateLine `json:"intermediates"`
	Acquisitions  []StepAcquireLine      `json:"acquisitions"`
}

// IntermediateLine is a plan-wide flattened intermediate-crafting total.
type IntermediateLine struct {
	ItemID       int          `json:"item_id"`
	Quantity     float64      `json:"quantity"`
	Kind         ProducerKind `json:"kind"`
	ProducerName string       `json:"producer_name"`
}

// ShoppingListLine is one consolidated purchase across all steps.
type ShoppingListLine struct {
	ItemID          int               `json:"item_id"`
	Quantity        float64           `json:"quantity"`
	UnitPriceCopper int64             `json:"unit_price_copper"`
	Source          AcquisitionSource `json:"source"`
}

// OwnedMaterialLine is the total owned quantity a plan proposes to consume.
type OwnedMaterialLine struct {
	ItemID   int     `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// PlanResult is a complete leveling plan. Quantities are carried as
// decimals; rounding is left to the presentation layer.
type PlanResult struct {
	Steps                             []PlanStep          `json:"steps"`
	StepBreakdowns                    []StepBreakdown     `json:"step_breakdowns"`
	Intermediates                     []IntermediateLine  `json:"intermediates"`
	ShoppingList                      []ShoppingListLine  `json:"shopping_list"`
	OwnedMaterialsUsed                []OwnedMaterialLine `json:"owned_materials_used"`
	SkillCreditApplied                int                 `json:"skill_credit_applied"`
	ExpectedSkillUpsFromIntermediates float64             `json:"expected_skill_ups_from_intermediates"`
	TotalCostCopper                   float64             `json:"total_cost_copper"`
	GeneratedAt                       time.Time           `json:"generated_at"`
}

// PlanComputationResult is the plan boundary contract: either a usable plan
// or a clear reason none could be produced, plus the pricing snapshot the
// computation ran against.
type PlanComputationResult struct {
	Plan           *PlanResult   `json:"plan,omitempty"`
	PriceSnapshot  PriceSnapshot `json:"price_snapshot"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	MissingItemIDs []int         `json:"missing_item_ids,omitempty"`
}
