// Profession leveling planner server and CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ahplanner/planner-server/internal/planner/api"
	"github.com/ahplanner/planner-server/internal/planner/config"
	"github.com/ahplanner/planner-server/internal/planner/db"
	"github.com/ahplanner/planner-server/internal/planner/engine"
	"github.com/ahplanner/planner-server/internal/planner/sync"
	"github.com/ahplanner/planner-server/pkg/planner"
)

var (
	dbPath  string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planner-server",
		Short: "Profession leveling plan optimizer",
		Long: `Computes the cheapest sequence of crafts to raise a profession
skill to a target level, priced against uploaded auction house snapshots.`,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "planner.db", "Path to SQLite database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(planCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func openDatabase(ctx context.Context, logger *slog.Logger) *db.DB {
	database, err := db.OpenAndInit(ctx, dbPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	return database
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				logger.Error("failed to load configuration", "error", err)
				os.Exit(1)
			}
			if cmd.Flags().Changed("db") || cfg.Database.Path == "" {
				cfg.Database.Path = dbPath
			} else {
				dbPath = cfg.Database.Path
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			database := openDatabase(ctx, logger)
			defer func() { _ = database.Close() }()

			stores := api.NewStores(database)
			planEngine := engine.New(stores.Recipes, stores.Items, stores.Prices, stores.Owned, cfg.Planner.SnapshotStaleAfter)

			e := api.New(cfg, logger, planEngine, stores)
			server := api.NewHTTPServer(cfg.Server, e)

			go func() {
				logger.Info("server listening", "addr", server.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", "error", err)
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		},
	}
}

func importCmd() *cobra.Command {
	var (
		versionFlag  string
		regionFlag   string
		recipesFile  string
		itemsFile    string
		realmsFile   string
		snapshotFile string
		ownedFile    string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import game data, price snapshots or owned materials",
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			database := openDatabase(ctx, logger)
			defer func() { _ = database.Close() }()

			syncer := sync.NewSyncer(database)

			if recipesFile != "" || itemsFile != "" || realmsFile != "" {
				version, err := planner.ParseGameVersion(versionFlag)
				if err != nil {
					logger.Error("invalid game version", "error", err)
					os.Exit(1)
				}

				if recipesFile != "" {
					logger.Info("importing recipes", "file", recipesFile)
					if err := syncer.ImportRecipesFromFile(ctx, version, recipesFile); err != nil {
						logger.Error("failed to import recipes", "error", err)
						os.Exit(1)
					}
					count, err := database.GetSyncMetadata(ctx, "recipes_count")
					if err != nil {
						logger.Error("failed to read import bookkeeping", "error", err)
						os.Exit(1)
					}
					logger.Info("recipes imported successfully", "count", count)
				}

				if itemsFile != "" {
					logger.Info("importing items", "file", itemsFile)
					if err := syncer.ImportItemsFromFile(ctx, version, itemsFile); err != nil {
						logger.Error("failed to import items", "error", err)
						os.Exit(1)
					}
					logger.Info("items imported successfully")
				}

				if realmsFile != "" {
					region, err := planner.ParseRegion(regionFlag)
					if err != nil {
						logger.Error("invalid region", "error", err)
						os.Exit(1)
					}
					logger.Info("importing realms", "file", realmsFile)
					if err := syncer.ImportRealmsFromFile(ctx, region, version, realmsFile); err != nil {
						logger.Error("failed to import realms", "error", err)
						os.Exit(1)
					}
					logger.Info("realms imported successfully")
				}
			}

			if snapshotFile != "" {
				logger.Info("importing price snapshot", "file", snapshotFile)
				uploadID, err := syncer.ImportSnapshotFromFile(ctx, snapshotFile)
				if err != nil {
					logger.Error("failed to import snapshot", "error", err)
					os.Exit(1)
				}
				logger.Info("snapshot imported successfully", "upload_id", uploadID)
			}

			if ownedFile != "" {
				logger.Info("importing owned materials", "file", ownedFile)
				if err := syncer.ImportOwnedFromFile(ctx, ownedFile); err != nil {
					logger.Error("failed to import owned materials", "error", err)
					os.Exit(1)
				}
				logger.Info("owned materials imported successfully")
			}
		},
	}

	cmd.Flags().StringVar(&versionFlag, "version", "vanilla", "Game version of the imported data")
	cmd.Flags().StringVar(&regionFlag, "region", "eu", "Region of the imported realm list")
	cmd.Flags().StringVar(&recipesFile, "recipes", "", "Import recipes from JSON file")
	cmd.Flags().StringVar(&itemsFile, "items", "", "Import item names and vendor prices from JSON file")
	cmd.Flags().StringVar(&realmsFile, "realms", "", "Import realm list from JSON file")
	cmd.Flags().StringVar(&snapshotFile, "snapshot", "", "Import a price snapshot export")
	cmd.Flags().StringVar(&ownedFile, "owned", "", "Import an owned-materials export")

	return cmd
}

func planCmd() *cobra.Command {
	var (
		realmFlag     string
		professionID  int
		currentSkill  int
		targetSkill   int
		priceModeFlag string
		useCraft      bool
		useSmelt      bool
		useOwned      bool
		userFlag      string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute a leveling plan and print it",
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			realmKey, err := planner.ParseRealmKey(realmFlag)
			if err != nil {
				color.Red("Invalid realm: %v", err)
				os.Exit(1)
			}
			priceMode, err := planner.ParsePriceMode(priceModeFlag)
			if err != nil {
				color.Red("Invalid price mode: %v", err)
				os.Exit(1)
			}

			database := openDatabase(ctx, logger)
			defer func() { _ = database.Close() }()

			stores := api.NewStores(database)
			planEngine := engine.New(stores.Recipes, stores.Items, stores.Prices, stores.Owned, 24*time.Hour)

			result, err := planEngine.ComputePlan(ctx, userFlag, planner.PlanRequest{
				RealmKey:              realmKey,
				ProfessionID:          professionID,
				CurrentSkill:          currentSkill,
				TargetSkill:           targetSkill,
				PriceMode:             priceMode,
				UseCraftIntermediates: useCraft,
				UseSmeltIntermediates: useSmelt,
				UseOwnedMaterials:     useOwned,
			})
			if err != nil {
				color.Red("Error: %v", err)
				os.Exit(1)
			}
			if result.Plan == nil {
				color.Red("No plan: %s", result.ErrorMessage)
				if len(result.MissingItemIDs) > 0 {
					color.Yellow("Missing prices for items: %v", result.MissingItemIDs)
				}
				os.Exit(1)
			}

			names := itemNames(ctx, stores, realmKey.GameVersion, result.Plan)
			printPlan(result, names)
		},
	}

	cmd.Flags().StringVar(&realmFlag, "realm", "", "Realm key in region-version-slug form (required)")
	cmd.Flags().IntVar(&professionID, "profession", 0, "Profession id (required)")
	cmd.Flags().IntVar(&currentSkill, "from", 1, "Current skill level")
	cmd.Flags().IntVar(&targetSkill, "to", 300, "Target skill level")
	cmd.Flags().StringVar(&priceModeFlag, "price-mode", "min", "Market figure to plan against (min or median)")
	cmd.Flags().BoolVar(&useCraft, "use-craft", false, "Allow crafting intermediates from other professions")
	cmd.Flags().BoolVar(&useSmelt, "use-smelt", false, "Allow smelting intermediate bars")
	cmd.Flags().BoolVar(&useOwned, "use-owned", false, "Allocate stored owned materials")
	cmd.Flags().StringVar(&userFlag, "user", "default", "User id for owned materials")
	_ = cmd.MarkFlagRequired("realm")
	_ = cmd.MarkFlagRequired("profession")

	return cmd
}

// itemNames resolves display names for every item the plan touches.
func itemNames(ctx context.Context, stores api.Stores, version planner.GameVersion, plan *planner.PlanResult) map[int]string {
	seen := make(map[int]bool)
	for _, line := range plan.ShoppingList {
		seen[line.ItemID] = true
	}
	for _, line := range plan.Intermediates {
		seen[line.ItemID] = true
	}
	for _, line := range plan.OwnedMaterialsUsed {
		seen[line.ItemID] = true
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	names, err := stores.Items.GetItemNames(ctx, version, ids)
	if err != nil {
		return map[int]string{}
	}
	return names
}

func printPlan(result *planner.PlanComputationResult, names map[int]string) {
	titleColor := color.New(color.FgCyan, color.Bold)
	infoColor := color.New(color.FgYellow)

	plan := result.Plan

	titleColor.Println("\nLeveling Plan")
	if result.PriceSnapshot.IsStale {
		infoColor.Printf("Warning: price snapshot from %s is stale\n",
			result.PriceSnapshot.SnapshotTimestamp.Format(time.RFC3339))
	}

	steps := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"#", "Recipe", "Skill", "Chance", "Crafts", "Cost"}),
	)
	for i, step := range plan.Steps {
		_ = steps.Append([]string{
			fmt.Sprintf("%d", i+1),
			step.RecipeName,
			fmt.Sprintf("%d -> %d", step.SkillFrom, step.SkillTo),
			fmt.Sprintf("%.0f%%", step.SkillUpChance*100),
			fmt.Sprintf("%.1f", step.ExpectedCrafts),
			formatCopper(int64(math.Round(step.ExpectedCostCopper))),
		})
	}
	_ = steps.Render()

	if len(plan.Intermediates) > 0 {
		titleColor.Println("\nIntermediates to produce")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Item", "Produce", "Via"}),
		)
		for _, line := range plan.Intermediates {
			_ = table.Append([]string{
				itemLabel(line.ItemID, names),
				fmt.Sprintf("%.1f", line.Quantity),
				fmt.Sprintf("%s (%s)", line.ProducerName, line.Kind),
			})
		}
		_ = table.Render()
	}

	titleColor.Println("\nShopping list")
	shopping := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Item", "Quantity", "Unit", "Source", "Subtotal"}),
	)
	for _, line := range plan.ShoppingList {
		subtotal := int64(math.Ceil(line.Quantity)) * line.UnitPriceCopper
		_ = shopping.Append([]string{
			itemLabel(line.ItemID, names),
			fmt.Sprintf("%.0f", math.Ceil(line.Quantity)),
			formatCopper(line.UnitPriceCopper),
			string(line.Source),
			formatCopper(subtotal),
		})
	}
	_ = shopping.Render()

	if len(plan.OwnedMaterialsUsed) > 0 {
		titleColor.Println("\nOwned materials used")
		for _, line := range plan.OwnedMaterialsUsed {
			fmt.Printf("  %s x%.0f\n", itemLabel(line.ItemID, names), line.Quantity)
		}
	}

	if plan.SkillCreditApplied > 0 {
		infoColor.Printf("\nCrafting intermediates grants about %d extra skill-ups\n", plan.SkillCreditApplied)
	}

	color.New(color.FgGreen, color.Bold).Printf("\nTotal cost: %s\n",
		formatCopper(int64(math.Round(plan.TotalCostCopper))))
}

func itemLabel(itemID int, names map[int]string) string {
	if name, ok := names[itemID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("item %d", itemID)
}

// formatCopper renders a copper amount as gold/silver/copper.
func formatCopper(copper int64) string {
	gold := copper / 10000
	silver := (copper % 10000) / 100
	c := copper % 100
	switch {
	case gold > 0:
		return fmt.Sprintf("%dg %ds %dc", gold, silver, c)
	case silver > 0:
		return fmt.Sprintf("%ds %dc", silver, c)
	default:
		return fmt.Sprintf("%dc", c)
	}
}
