package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"signalscout/internal/config"
	"signalscout/internal/engine"
	"signalscout/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and their health state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		eng, err := engine.New(cfg, nil, zap.NewNop())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLASS\tMETRIC\tWEIGHT\tMODES\tSTATE")
		for _, src := range eng.Registry().All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
				src.ID, src.Name, src.Class, src.Metric, src.Weight,
				modesString(src.Modes), src.Health.State())
		}
		return w.Flush()
	},
}

func modesString(modes []source.Mode) string {
	out := ""
	for i, m := range modes {
		if i > 0 {
			out += ","
		}
		out += string(m)
	}
	return out
}
