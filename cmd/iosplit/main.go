package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"iosplit/internal/config"
	"iosplit/internal/database"
	"iosplit/internal/llm"
	"iosplit/internal/pipeline"
	"iosplit/internal/server"
	"iosplit/internal/sheets"
	"iosplit/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "iosplit",
	Short:   "Split multi-show sponsorship contracts",
	Long:    "iosplit classifies insertion-order PDFs by show, renders per-show redacted copies, and exports one spreadsheet row per insertion date.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("iosplit", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/iosplit/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the LLM provider, API keys, and the export spreadsheet.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show export ledger statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Ledger:")
		fmt.Printf("  Documents processed: %d\n", stats.Documents)
		fmt.Printf("  Export batches: %d\n", stats.ExportBatches)
		fmt.Printf("  Rows exported: %d\n", stats.ExportedRows)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		svc, db, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		fmt.Printf("Starting server at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, svc)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

// --- process command ---

var (
	processOut    string
	processShow   string
	processExport bool
)

var processCmd = &cobra.Command{
	Use:   "process [pdf]",
	Short: "Run the full flow for one PDF: classify, redact per show, export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		result := svc.Process(cmd.Context(), args[0], pipeline.ProcessOptions{
			OutDir: processOut,
			Show:   processShow,
			Export: processExport,
		})

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		for _, step := range result.Steps {
			if step.Err != nil {
				return fmt.Errorf("processing failed at %s", step.Name)
			}
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processOut, "out", "o", "redacted", "Directory for per-show redacted PDFs (empty to skip)")
	processCmd.Flags().StringVar(&processShow, "show", "", "Redact only this show (default: all discovered shows)")
	processCmd.Flags().BoolVar(&processExport, "export", false, "Append the expanded rows to the configured sheet")
}

// buildService assembles the pipeline service from config: LLM provider,
// export ledger, and the Sheets client when a spreadsheet is configured.
func buildService(ctx context.Context) (*pipeline.Service, *database.DB, error) {
	provider := llm.CreateProvider(
		cfg.AI.Provider,
		cfg.AI.Model,
		cfg.AI.BaseURL,
		cfg.AI.OpenAIModel,
		cfg.AI.APIKeyEnv,
		cfg.AI.OpenAIKeyEnv,
	)

	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}

	var appender sheets.Appender
	if cfg.Sheets.SpreadsheetID != "" {
		client, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			Worksheet:       cfg.Sheets.Worksheet,
			CredentialsEnv:  cfg.Sheets.CredentialsEnv,
			CredentialsFile: cfg.Sheets.CredentialsFile,
		})
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("creating sheets client: %w", err)
		}
		appender = client
	} else {
		log.Println("No spreadsheet configured; exports will fail until sheets.spreadsheet_id is set")
	}

	return pipeline.New(cfg, store.New(), db, provider, appender), db, nil
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "iosplit.db")
	return database.Open(dbPath)
}
