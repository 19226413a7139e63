package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/ccdetect/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (empty imports the built-in defaults)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		profile    = flag.String("profile", config.DefaultProfile, "Profile name to write the parameters under")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
		schema     = flag.Int("schema-version", -1, "Migrate the SQLite schema to this version and exit (0 removes all configuration tables)")
	)
	flag.Parse()

	if *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [-yaml <ccd.yaml>] -sqlite <ccd.db> [-profile name]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *schema >= 0 {
		if err := migrateSchema(*sqliteFile, *schema, *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "Error migrating schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configData, err := loadSource(*yamlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Importing detection parameters into SQLite...\n")
	fmt.Printf("  Source: %s\n", sourceName(*yamlFile))
	fmt.Printf("  Target: %s (profile %q)\n", *sqliteFile, *profile)
	printConfigSummary(configData)

	if *dryRun {
		fmt.Println("DRY RUN complete - no database written")
		return
	}

	if err := os.MkdirAll(filepath.Dir(*sqliteFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile, *profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening SQLite database: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	if err := provider.InitSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}
	if err := provider.SaveConfig(configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Import completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s -profile %s\n", *sqliteFile, *profile)
}

func migrateSchema(sqliteFile string, version int, dryRun bool) error {
	provider, err := config.NewSQLiteProvider(sqliteFile, "")
	if err != nil {
		return err
	}
	defer provider.Close()

	current, pending, err := provider.SchemaStatus()
	if err != nil {
		return err
	}
	fmt.Printf("Schema version %d in %s\n", current, sqliteFile)
	for _, m := range pending {
		fmt.Printf("  pending: %03d %s\n", m.Version, m.Name)
	}

	if dryRun {
		fmt.Printf("DRY RUN complete - schema would move to version %d\n", version)
		return nil
	}
	if err := provider.MigrateSchema(version); err != nil {
		return err
	}
	fmt.Printf("Schema now at version %d\n", version)
	return nil
}

func loadSource(yamlFile string) (*config.ConfigData, error) {
	if yamlFile == "" {
		cfg := config.Defaults()
		return &cfg, nil
	}
	return config.NewYAMLProvider(yamlFile).LoadConfig()
}

func sourceName(yamlFile string) string {
	if yamlFile == "" {
		return "built-in defaults"
	}
	return yamlFile
}

func printConfigSummary(configData *config.ConfigData) {
	d := configData.Detection
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("  Window: %d observations over at least %d days, peek %d\n", d.MEOWSize, d.DayDelta, d.PeekSize)
	fmt.Printf("  Coefficients: %d/%d/%d\n", d.CoefMin, d.CoefMid, d.CoefMax)
	fmt.Printf("  Detection bands: %v\n", d.DetectionBands)
	fmt.Printf("  Tmask bands: %v\n", d.TMaskBands)
	fmt.Printf("  Fitter: %s (alpha %g)\n", d.Fitter.Name, d.Fitter.Alpha)
	fmt.Printf("  Output: %s, compression %s\n", configData.Output.Format, configData.Output.Compression)
}
