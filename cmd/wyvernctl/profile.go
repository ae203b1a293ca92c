package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/curve"
	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "List, inspect, apply and capture fan profiles.",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profile sections in the configuration file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := newStore().Names()
		if err != nil {
			return err
		}
		detected, ok := profile.DetectProfile(names)
		for _, name := range names {
			if ok && name == detected {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (detected)\n", name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [SECTION]",
	Short: "Show the profile currently programmed into the EC.",
	Long: `Reads the 28 profile registers and prints them as value @ address rows.
SECTION picks the address map to read through: a profile section is
followed via its address_profile key, a reserved section is used
directly, and no argument means the default layout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section := ""
		if len(args) == 1 {
			section = args[0]
		}
		am, err := newStore().AddressMapFor(section)
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		snap, err := eng.ReadLive(am)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\nProfile dump")
		printFanModeRow(out, snap.RawFanMode, am.FanMode)
		printBatteryRow(out, snap.RawBattery, am.BatteryThreshold)
		printCurveTables(out, am, snap.CPU, snap.GPU)
		return nil
	},
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply SECTION",
	Short: "Write a configured profile into the EC.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		p, err := store.Profile(args[0])
		if err != nil {
			return err
		}
		am, err := store.AddressMapFor(args[0])
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\nWriting config to EC...")
		if err := eng.Apply(am, p); err != nil {
			return err
		}

		printFanModeRow(out, byte(p.FanMode), am.FanMode)
		if p.BatteryThreshold >= ec.BatteryMin && p.BatteryThreshold <= ec.BatteryMax {
			printBatteryRow(out, ec.EncodeBatteryThreshold(p.BatteryThreshold), am.BatteryThreshold)
		}
		printCurveTables(out, am, p.CPU, p.GPU)
		return nil
	},
}

var profileSaveCmd = &cobra.Command{
	Use:   "save SECTION",
	Short: "Read the live EC profile into a configuration section.",
	Long: `Reads the 28 profile registers and writes them to the named section,
creating it if needed. An existing section keeps its address_profile;
a new one gets the default. Fails if the hardware holds values no
valid profile may contain (an unknown fan mode, an unordered curve).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		section := args[0]
		if profile.ReservedSection(section) {
			return fmt.Errorf("section name %q is reserved", section)
		}
		store := newStore()

		addrSection := profile.SectionAddressDefault
		if existing, err := store.Profile(section); err == nil {
			addrSection = existing.AddressProfile
		}
		am, err := store.AddressMap(addrSection)
		if err != nil {
			return err
		}

		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		snap, err := eng.ReadLive(am)
		if err != nil {
			return err
		}

		pct, _ := snap.BatteryThreshold()
		p := &profile.Profile{
			Name:             section,
			AddressProfile:   addrSection,
			FanMode:          snap.FanMode(),
			BatteryThreshold: pct,
			CPU:              snap.CPU,
			GPU:              snap.GPU,
		}
		if err := store.SaveProfile(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", section, store.Path())
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileApplyCmd)
	profileCmd.AddCommand(profileSaveCmd)
	rootCmd.AddCommand(profileCmd)
}

func printFanModeRow(out io.Writer, raw byte, addr uint32) {
	fmt.Fprintf(out, threeColumn, "Value", "set @ address", "Fan mode")
	fmt.Fprintf(out, threeColumn, cell(int(raw), ""), addrCell(addr), ec.DecodeFanMode(raw).String())
	fmt.Fprintln(out)
}

// printBatteryRow decodes the battery byte into the charging window:
// charging starts below threshold-10 and stops at the threshold.
func printBatteryRow(out io.Writer, raw byte, addr uint32) {
	fmt.Fprintf(out, threeColumn, "Value", "set @ address", "Charging below - stop @")
	if pct, ok := ec.DecodeBatteryThreshold(raw); ok {
		fmt.Fprintf(out, threeColumn, cell(int(raw), ""), addrCell(addr), fmt.Sprintf("%d%% - %d%%", pct-10, pct))
	} else {
		fmt.Fprintf(out, threeColumn, cell(int(raw), ""), addrCell(addr), "Nothing is set")
	}
	fmt.Fprintln(out)
}

// printCurveTables prints the CPU/GPU temperature thresholds and fan
// speed steps side by side in the four-column layout.
func printCurveTables(out io.Writer, am *profile.AddressMap, cpu, gpu curve.Curve) {
	fmt.Fprintln(out, cpuGPURule)
	fmt.Fprintf(out, fourColumn, "Value", "set @ address", "Value", "set @ address")
	for i := 0; i < curve.NumThresholds; i++ {
		fmt.Fprintf(out, fourColumn,
			cell(cpu.Temps[i], "°C"), addrCell(am.CPUTemp[i]),
			cell(gpu.Temps[i], "°C"), addrCell(am.GPUTemp[i]))
	}
	fmt.Fprintln(out)
	for i := 0; i < curve.NumSpeeds; i++ {
		fmt.Fprintf(out, fourColumn,
			cell(cpu.Speeds[i], "%"), addrCell(am.CPUFanSpeed[i]),
			cell(gpu.Speeds[i], "%"), addrCell(am.GPUFanSpeed[i]))
	}
}
