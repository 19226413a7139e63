package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrissnell/ccdetect/internal/app"
	"github.com/chrissnell/ccdetect/internal/constants"
	"github.com/chrissnell/ccdetect/internal/log"
	"github.com/chrissnell/ccdetect/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "", "Path to configuration source:\n\t\t\t  YAML: ccd.yaml\n\t\t\t  SQLite: ccd.db\n\t\t\t  Empty uses the built-in defaults\n\t\t\t  Use 'ccd-config' to import YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	profile := flag.String("profile", config.DefaultProfile, "Parameter profile to load from a SQLite configuration")
	input := flag.String("input", "-", "Observation CSV to read, '-' for stdin")
	output := flag.String("output", "-", "File to write results to, '-' for stdout")
	format := flag.String("format", "", "Output format override: json or msgpack")
	compression := flag.String("compression", "", "Output compression override: none, zstd, lz4 or s2")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ccd %s (%s)\n", constants.Version, constants.Algorithm)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfgData, err := loadConfig(*cfgFile, *cfgBackend, *profile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *format != "" {
		cfgData.Output.Format = *format
	}
	if *compression != "" {
		cfgData.Output.Compression = *compression
	}
	if err := cfgData.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	in, closeIn, err := openInput(*input)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer closeIn()

	out, closeOut, err := openOutput(*output)
	if err != nil {
		log.Fatalf("Failed to open output: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and run the application
	application := app.New(cfgData, log.GetSugaredLogger())
	summary, err := application.Run(ctx, in, out)
	if cerr := closeOut(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("Application error: %v", err)
	}
	if summary.Failed > 0 {
		log.Warnf("%d of %d pixels failed", summary.Failed, summary.Pixels)
	}
}

func loadConfig(cfgFile, cfgBackend, profile string) (*config.ConfigData, error) {
	if cfgFile == "" {
		cfgData := config.Defaults()
		return &cfgData, nil
	}

	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename, profile)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return bufio.NewReader(os.Stdin), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return bufio.NewReader(f), func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		bw := bufio.NewWriter(os.Stdout)
		return bw, bw.Flush, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
