package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/phylo/db"
	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/storage"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the concept database",
	Long: `db - Manage the phylo concept database

Examples:
  phylo db migrate                # Apply pending schema migrations
  phylo db stats                  # Show concept and name counts
  phylo db seed taxa.yaml         # Import a YAML concept tree`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long:  "Open the database, apply any pending schema migrations and list their status",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display concept and name counts, the root concept and the freshness watermark",
	RunE:  runDbStats,
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import a YAML concept tree",
	Long: `Import a concept tree from YAML. The file's top node becomes the root, so
seeding only works on an empty database.

  name: Animalia
  rank_name: kingdom
  alternates:
    - {name: animals, type: common}
  children:
    - name: Chordata
      rank_name: phylum`,
	Args: cobra.ExactArgs(1),
	RunE: runDbSeed,
}

var dbPathFlag string

func init() {
	DbCmd.PersistentFlags().StringVar(&dbPathFlag, "db-path", "", "Database path (overrides config)")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbSeedCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	status, err := db.MigrationStatus(database)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Version", "Migration", "Applied"}}
	for _, m := range status {
		data = append(data, []string{m.Version, m.Filename, fmt.Sprintf("%t", m.Applied)})
	}
	pterm.Info.Printf("Database: %s\n", path)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, path, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	concepts := storage.NewConceptStore(database, logger.Named("concepts"))
	conceptCount, nameCount, err := concepts.Count(ctx)
	if err != nil {
		return err
	}

	rootName := "(none)"
	root, err := concepts.FindRoot(ctx)
	switch {
	case err == nil:
		rootName = root.PrimaryName()
	case errors.Is(err, storage.ErrNotFound):
	default:
		return err
	}

	watermark := storage.NewRowSource(database, logger.Named("rows")).FetchFreshnessWatermark(ctx)

	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Database", path},
		{"Concepts", fmt.Sprintf("%d", conceptCount)},
		{"Names", fmt.Sprintf("%d", nameCount)},
		{"Root", rootName},
		{"Last modified", watermark.Format("2006-01-02 15:04:05.000 MST")},
	}).Render()
}

func runDbSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to open seed file %s", args[0])
	}
	defer f.Close()

	database, path, err := openDatabase(dbPathFlag)
	if err != nil {
		return err
	}
	defer database.Close()

	store := storage.NewConceptStore(database, logger.Named("concepts"))
	n, err := storage.LoadSeed(context.Background(), store, f)
	if err != nil {
		return errors.Wrapf(err, "seeded %d concepts before failing", n)
	}
	pterm.Success.Printf("Seeded %d concepts into %s\n", n, path)
	return nil
}
