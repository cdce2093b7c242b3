package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"signalscout/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Score a single URL against your profile",
	Long: "check fetches one page, scores its title and description the same\n" +
		"way query results are scored, and tells you whether it is worth reading.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, logger, err := buildEngine()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		verdict, err := eng.AnalyzeURL(cmd.Context(), args[0], flagTags)
		if err != nil {
			return err
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(verdict)
		}
		fmt.Print(render.Verdict(verdict))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringSliceVar(&flagTags, "profile", nil, "profile technology tags (overrides config)")
	checkCmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON instead of styled text")
}
