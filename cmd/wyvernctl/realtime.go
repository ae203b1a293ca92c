package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/profile"
)

// samplePeriod is the delay between realtime reads.
const samplePeriod = 2 * time.Second

const (
	realtimeHeader = "┌─Temp─┬─Fan Speed──────┐        ┌─Temp─┬─Fan Speed──────┐"
	realtimeFooter = "└──────┴────────────────┘        └──────┴────────────────┘"
	realtimeRow    = "%-5s %-7s %-8s %-8s %-6s %-7s %-8s %s\n"
)

var realtimeCount int

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Stream live CPU and GPU temperature and fan readings.",
	Long: `Reads the realtime sensor registers every 2 seconds and prints one row
per sample. With -n 0 (the default) it runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		am, err := newStore().AddressMap(profile.SectionAddressDefault)
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cpuGPURule)
		fmt.Fprintln(out, realtimeHeader)
		for i := 0; realtimeCount == 0 || i < realtimeCount; i++ {
			rt, err := eng.ReadRealtime(am)
			if err != nil {
				fmt.Fprintln(out, realtimeFooter)
				return err
			}
			fmt.Fprintf(out, realtimeRow,
				fmt.Sprintf("│ %d°C", rt.CPUTemp),
				fmt.Sprintf("│ %d%% ", rt.CPUFanSpeed),
				fmt.Sprintf("%dRPM", rt.CPUFanRPM),
				"│",
				fmt.Sprintf("│ %d°C", rt.GPUTemp),
				fmt.Sprintf("│ %d%% ", rt.GPUFanSpeed),
				fmt.Sprintf("%dRPM", rt.GPUFanRPM),
				"│")
			if realtimeCount != 0 && i == realtimeCount-1 {
				break
			}
			time.Sleep(samplePeriod)
		}
		fmt.Fprintln(out, realtimeFooter)
		return nil
	},
}

func init() {
	realtimeCmd.Flags().IntVarP(&realtimeCount, "count", "n", 0, "number of samples to take (0 = run until interrupted)")
	rootCmd.AddCommand(realtimeCmd)
}
