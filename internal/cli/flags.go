package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a local group of participants.",
	Long: `The run command starts a group of participants in one process, each served
on its own ZeroMQ endpoint (base-port plus participant id), drives all of them
to start consensus, and prints the final state of every participant.

Faulty participants are silent: they never vote and never decide. When the
fault-tolerance parameter exceeds half of the group size, every live
participant reports "no finality" instead of a decision.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runLocal()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("participants", 4, "number of participants in the group")
	runCmd.Flags().Int("fault-tolerance", 1, "maximum number of participants assumed faulty (F)")
	runCmd.Flags().IntSlice("faulty", nil, "ids of participants to run as silent/faulty")
	runCmd.Flags().IntSlice("initial-values", nil, "initial belief per participant (0 or 1); random when omitted")
	runCmd.Flags().String("host", "127.0.0.1", "host to bind the participant endpoints on")
	runCmd.Flags().Int("base-port", 20100, "base port; participant i listens on base-port+i")
	runCmd.Flags().Duration("collect-window", 500*time.Millisecond, "per-round vote collection window")
	runCmd.Flags().Uint32("round-cap", 2, "number of rounds before force-deciding the fallback value")
	runCmd.Flags().Int("fallback-value", 1, "belief adopted when the round cap is reached")
	runCmd.Flags().Uint64("seed", 0, "seed for the tie-break coins; 0 seeds from entropy")
	runCmd.Flags().Uint("coin-bias", 50, "percentage of tie-break flips that land on 1; 50 is a fair coin")
	runCmd.Flags().Float64("rate-limit", 0, "limit outbound vote sends (per second, per participant); 0 disables")
	runCmd.Flags().Duration("start-timeout", time.Minute, "upper bound on the whole run")
	runCmd.Flags().String("output", "", "directory to record run results in (disabled by default)")

	err := viper.BindPFlags(runCmd.Flags())
	if err != nil {
		panic(err)
	}
}
