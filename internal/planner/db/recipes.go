package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// RecipeStore handles profession and recipe data access.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// GetProfessions lists the professions known for a game version, ordered
// by name.
func (s *RecipeStore) GetProfessions(ctx context.Context, version planner.GameVersion) ([]planner.Profession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profession_id, name
		FROM professions
		WHERE game_version = ?
		ORDER BY name
	`, string(version))
	if err != nil {
		return nil, fmt.Errorf("querying professions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var professions []planner.Profession
	for rows.Next() {
		var p planner.Profession
		if err := rows.Scan(&p.ProfessionID, &p.Name); err != nil {
			return nil, fmt.Errorf("scanning profession: %w", err)
		}
		professions = append(professions, p)
	}

	return professions, rows.Err()
}

// GetRecipe retrieves a single recipe by ID with its reagents.
func (s *RecipeStore) GetRecipe(ctx context.Context, version planner.GameVersion, id string) (*planner.Recipe, error) {
	recipe := &planner.Recipe{RecipeID: id}

	var kind string
	var outputItemID, outputQuantity sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT name, profession_id, kind, min_skill, orange_until, yellow_until,
		       green_until, gray_at, trainer_taught, cooldown_sec,
		       output_item_id, output_quantity
		FROM recipes
		WHERE game_version = ? AND recipe_id = ?
	`, string(version), id).Scan(
		&recipe.Name,
		&recipe.ProfessionID,
		&kind,
		&recipe.MinSkill,
		&recipe.OrangeUntil,
		&recipe.YellowUntil,
		&recipe.GreenUntil,
		&recipe.GrayAt,
		&recipe.TrainerTaught,
		&recipe.CooldownSec,
		&outputItemID,
		&outputQuantity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipe: %w", err)
	}
	recipe.Kind = planner.ProducerKind(kind)
	if outputItemID.Valid && outputQuantity.Valid {
		recipe.Output = &planner.RecipeOutput{
			ItemID:   int(outputItemID.Int64),
			Quantity: int(outputQuantity.Int64),
		}
	}

	reagents, err := s.getRecipeReagents(ctx, version, id)
	if err != nil {
		return nil, err
	}
	recipe.Reagents = reagents

	return recipe, nil
}

// GetRecipes retrieves a profession's recipes with their reagents, ordered
// by recipe ID.
func (s *RecipeStore) GetRecipes(ctx context.Context, version planner.GameVersion, professionID int) ([]planner.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipe_id, name, profession_id, kind, min_skill, orange_until,
		       yellow_until, green_until, gray_at, trainer_taught, cooldown_sec,
		       output_item_id, output_quantity
		FROM recipes
		WHERE game_version = ? AND profession_id = ?
		ORDER BY recipe_id
	`, string(version), professionID)
	if err != nil {
		return nil, fmt.Errorf("querying recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recipes []planner.Recipe
	for rows.Next() {
		var r planner.Recipe
		var kind string
		var outputItemID, outputQuantity sql.NullInt64
		if err := rows.Scan(
			&r.RecipeID,
			&r.Name,
			&r.ProfessionID,
			&kind,
			&r.MinSkill,
			&r.OrangeUntil,
			&r.YellowUntil,
			&r.GreenUntil,
			&r.GrayAt,
			&r.TrainerTaught,
			&r.CooldownSec,
			&outputItemID,
			&outputQuantity,
		); err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		r.Kind = planner.ProducerKind(kind)
		if outputItemID.Valid && outputQuantity.Valid {
			r.Output = &planner.RecipeOutput{
				ItemID:   int(outputItemID.Int64),
				Quantity: int(outputQuantity.Int64),
			}
		}
		recipes = append(recipes, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recipes {
		reagents, err := s.getRecipeReagents(ctx, version, recipes[i].RecipeID)
		if err != nil {
			return nil, fmt.Errorf("loading reagents for %s: %w", recipes[i].RecipeID, err)
		}
		recipes[i].Reagents = reagents
	}

	return recipes, nil
}

// getRecipeReagents retrieves the reagents for a recipe.
func (s *RecipeStore) getRecipeReagents(ctx context.Context, version planner.GameVersion, recipeID string) ([]planner.Reagent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, quantity
		FROM recipe_reagents
		WHERE game_version = ? AND recipe_id = ?
		ORDER BY item_id
	`, string(version), recipeID)
	if err != nil {
		return nil, fmt.Errorf("querying recipe reagents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reagents []planner.Reagent
	for rows.Next() {
		var r planner.Reagent
		if err := rows.Scan(&r.ItemID, &r.Quantity); err != nil {
			return nil, fmt.Errorf("scanning reagent: %w", err)
		}
		reagents = append(reagents, r)
	}

	return reagents, rows.Err()
}

// GetExcludedRecipeIDs retrieves the excluded recipe set for a profession.
func (s *RecipeStore) GetExcludedRecipeIDs(ctx context.Context, version planner.GameVersion, professionID int) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipe_id
		FROM excluded_recipes
		WHERE game_version = ? AND profession_id = ?
	`, string(version), professionID)
	if err != nil {
		return nil, fmt.Errorf("querying excluded recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	excluded := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning excluded recipe id: %w", err)
		}
		excluded[id] = true
	}

	return excluded, rows.Err()
}

// SetExcludedRecipeIDs replaces the excluded recipe set for a profession.
func (s *RecipeStore) SetExcludedRecipeIDs(ctx context.Context, version planner.GameVersion, professionID int, recipeIDs []string) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM excluded_recipes
			WHERE game_version = ? AND profession_id = ?
		`, string(version), professionID)
		if err != nil {
			return fmt.Errorf("clearing excluded recipes: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO excluded_recipes (game_version, profession_id, recipe_id)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing exclusion statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, id := range recipeIDs {
			if _, err := stmt.ExecContext(ctx, string(version), professionID, id); err != nil {
				return fmt.Errorf("inserting exclusion %s: %w", id, err)
			}
		}

		return nil
	})
}

// CountRecipes returns the number of recipes stored for a game version.
func (s *RecipeStore) CountRecipes(ctx context.Context, version planner.GameVersion) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes WHERE game_version = ?`,
		string(version),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recipes: %w", err)
	}
	return count, nil
}

// BulkInsertProfessions inserts professions in a transaction.
func (s *RecipeStore) BulkInsertProfessions(ctx context.Context, version planner.GameVersion, professions []planner.Profession) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO professions (game_version, profession_id, name)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing profession statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, p := range professions {
			if _, err := stmt.ExecContext(ctx, string(version), p.ProfessionID, p.Name); err != nil {
				return fmt.Errorf("inserting profession %d: %w", p.ProfessionID, err)
			}
		}

		return nil
	})
}

// BulkInsertRecipes inserts recipes and their reagents in a transaction.
func (s *RecipeStore) BulkInsertRecipes(ctx context.Context, version planner.GameVersion, recipes []planner.Recipe) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		recipeStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO recipes
			(game_version, recipe_id, name, profession_id, kind, min_skill,
			 orange_until, yellow_until, green_until, gray_at, trainer_taught,
			 cooldown_sec, output_item_id, output_quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing recipe statement: %w", err)
		}
		defer func() { _ = recipeStmt.Close() }()

		reagentStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO recipe_reagents (game_version, recipe_id, item_id, quantity)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing reagent statement: %w", err)
		}
		defer func() { _ = reagentStmt.Close() }()

		for _, r := range recipes {
			var outputItemID, outputQuantity interface{}
			if r.Output != nil {
				outputItemID = r.Output.ItemID
				outputQuantity = r.Output.Quantity
			}

			_, err := recipeStmt.ExecContext(ctx,
				string(version), r.RecipeID, r.Name, r.ProfessionID, string(r.Kind),
				r.MinSkill, r.OrangeUntil, r.YellowUntil, r.GreenUntil, r.GrayAt,
				r.TrainerTaught, r.CooldownSec, outputItemID, outputQuantity,
			)
			if err != nil {
				return fmt.Errorf("inserting recipe %s: %w", r.RecipeID, err)
			}

			for _, reagent := range r.Reagents {
				_, err := reagentStmt.ExecContext(ctx,
					string(version), r.RecipeID, reagent.ItemID, reagent.Quantity,
				)
				if err != nil {
					return fmt.Errorf("inserting reagent for %s: %w", r.RecipeID, err)
				}
			}
		}

		return nil
	})
}

// ClearRecipes removes all recipe data for a game version (for re-sync).
func (s *RecipeStore) ClearRecipes(ctx context.Context, version planner.GameVersion) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys cascade delete the reagents
		_, err := tx.ExecContext(ctx,
			`DELETE FROM recipes WHERE game_version = ?`, string(version))
		return err
	})
}
