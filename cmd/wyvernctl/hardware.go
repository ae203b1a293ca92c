package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/profile"
)

var boostCmd = &cobra.Command{
	Use:   "boost on|off",
	Short: "Engage or release cooler boost.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		cb, err := store.CoolerBoost()
		if err != nil {
			return err
		}

		var value byte
		switch args[0] {
		case "on":
			value = cb.On
		case "off":
			value = cb.Off
		default:
			return fmt.Errorf("only off and on are valid, got %q", args[0])
		}

		am, err := store.AddressMap(cb.AddressProfile)
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		if err := eng.SetBoost(am, value); err != nil {
			return err
		}
		printWrite(cmd, am.CoolerBoost, value)
		return nil
	},
}

var backlightCmd = &cobra.Command{
	Use:   "backlight off|half|full",
	Short: "Set the USB port backlight level.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		ub, err := store.USBBacklight()
		if err != nil {
			return err
		}

		var value byte
		switch args[0] {
		case "off":
			value = ub.Off
		case "half":
			value = ub.Half
		case "full":
			value = ub.Full
		default:
			return fmt.Errorf("only off, half and full are valid, got %q", args[0])
		}

		am, err := store.AddressMap(ub.AddressProfile)
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		if err := eng.SetBacklight(am, value); err != nil {
			return err
		}
		printWrite(cmd, am.USBBacklight, value)
		return nil
	},
}

var batteryCmd = &cobra.Command{
	Use:   "battery PERCENT",
	Short: "Set the battery charging threshold.",
	Long: fmt.Sprintf(`Caps battery charging at PERCENT, between %d and %d. The EC starts
charging again once the level drops about 10%% below the threshold.`,
		ec.BatteryMin, ec.BatteryMax),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("threshold must be a number between %d and %d, got %q", ec.BatteryMin, ec.BatteryMax, args[0])
		}

		am, err := newStore().AddressMap(profile.SectionAddressDefault)
		if err != nil {
			return err
		}
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		if err := eng.SetBatteryThreshold(am, pct); err != nil {
			return err
		}
		printWrite(cmd, am.BatteryThreshold, ec.EncodeBatteryThreshold(pct))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(boostCmd)
	rootCmd.AddCommand(backlightCmd)
	rootCmd.AddCommand(batteryCmd)
}
