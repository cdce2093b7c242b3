package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signalscout/internal/browser"
	"signalscout/internal/config"
	"signalscout/internal/engine"
	"signalscout/internal/render"
	"signalscout/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagLimit   int
	flagTags    []string
	flagExpand  bool
	flagJSON    bool
	flagVerbose bool
	flagOpen    bool
	flagCheck   bool
)

var rootCmd = &cobra.Command{
	Use:   "signalscout [query]",
	Short: "On-demand intelligence aggregation across dev content sources",
	Long: "signalscout classifies a natural-language query, fans out to content\n" +
		"sources in parallel, and returns a ranked, deduplicated, clustered top-N.\n" +
		"Nothing fetched is ever persisted.",
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "max results")
	rootCmd.Flags().StringSliceVar(&flagTags, "profile", nil, "profile technology tags (overrides config)")
	rootCmd.Flags().BoolVar(&flagExpand, "expand", false, "include cluster members, not just representatives")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON instead of styled text")
	rootCmd.Flags().BoolVar(&flagOpen, "open", false, "open the top result in the browser")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "check for a newer release")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(checkCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	eng, logger, err := buildEngine()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	resp, err := eng.Query(cmd.Context(), engine.Request{
		Query:          strings.Join(args, " "),
		ProfileTags:    flagTags,
		Limit:          flagLimit,
		ExpandClusters: flagExpand,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}
	fmt.Print(render.Results(resp))

	if flagOpen && len(resp.Results) > 0 {
		if err := browser.Open(resp.Results[0].URL); err != nil {
			return fmt.Errorf("opening top result: %w", err)
		}
	}
	return nil
}

func buildEngine() (*engine.Engine, *zap.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	logger, err := buildLogger()
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

func buildLogger() (*zap.Logger, error) {
	if flagVerbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("signalscout %s (commit: %s, built: %s)\n", version, commit, date)
		if flagCheck {
			if r := update.Check(cmd.Context(), version); r != nil {
				fmt.Printf("newer release available: %s\n", r.LatestVersion)
			}
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
