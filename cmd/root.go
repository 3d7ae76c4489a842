// Package cmd defines and implements the CLI commands for the gplay-aso executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/app"
	"github.com/JakeFAU/gplay-aso/internal/config"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the services the commands use.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Scraper() *scraper.Scraper
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(cfg config.Config) (App, error) {
	return app.New(cfg)
}

type rootFlags struct {
	configFile string
	proxy      string
	devLogs    bool
	noCache    bool
	language   string
	country    string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "gplay-aso",
		Short: "Scrape a storefront listing and report its ASO keywords.",
		Long: `gplay-aso fetches one app's storefront detail page, extracts the listing
fields and attaches an App Store Optimization keyword report: top keywords,
bigrams, trigrams, keyword density and competitive categories.`,
		SilenceUsage: true,

		// Config is loaded and services are built before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (YAML, JSON or TOML)")
	pf.StringVar(&flags.proxy, "proxy", "", "proxy URL for every storefront request")
	pf.BoolVar(&flags.devLogs, "dev-logs", false, "human-readable development logging")
	pf.BoolVar(&flags.noCache, "no-cache", false, "disable the in-process listing cache")
	pf.StringVar(&flags.language, "lang", "", "storefront language (hl), e.g. en")
	pf.StringVar(&flags.country, "country", "", "storefront country (gl), e.g. us")

	cmd.AddCommand(newAnalyzeCmd(), newFieldCmd(), newFieldsCmd(), newServeCmd())
	return cmd
}

// loadConfig reads the config file/environment and applies explicit flags on top.
func loadConfig(cmd *cobra.Command, flags rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	pf := cmd.Flags()
	if pf.Changed("proxy") {
		cfg.HTTP.Proxy = flags.proxy
	}
	if pf.Changed("dev-logs") {
		cfg.Logging.Development = flags.devLogs
	}
	if pf.Changed("no-cache") {
		cfg.Cache.Enabled = !flags.noCache
	}
	if pf.Changed("lang") {
		cfg.HTTP.Language = flags.language
	}
	if pf.Changed("country") {
		cfg.HTTP.Country = flags.country
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := 1
		if kind, ok := scraper.KindOf(err); ok {
			code = exitCode(kind)
		}
		os.Exit(code)
	}
}

// exitCode gives scripts a way to tell failure kinds apart.
func exitCode(kind scraper.Kind) int {
	switch kind {
	case scraper.KindInvalidAppID:
		return 2
	case scraper.KindAppNotFound:
		return 3
	case scraper.KindRateLimit:
		return 4
	case scraper.KindNetwork:
		return 5
	case scraper.KindDataParsing:
		return 6
	default:
		return 1
	}
}
