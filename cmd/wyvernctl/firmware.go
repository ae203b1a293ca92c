package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/firmware"
)

var firmwareCmd = &cobra.Command{
	Use:   "firmware FILE",
	Short: "Show the fan profiles shipped in an EC firmware image.",
	Long: `Reads the seven candidate profile blocks from a firmware update image,
so you can see what a BIOS/EC update would program before flashing it.
FILE is opened read-only and never written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := ec.OpenReadOnly(args[0])
		if err != nil {
			return err
		}
		defer tr.Close()

		candidates, err := firmware.Scan(tr)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, c := range candidates {
			fmt.Fprintf(out, "\nPotential %s dump\n", c.Name())
			fmt.Fprintln(out, cpuGPURule)
			fmt.Fprintf(out, fourColumn, "Value", "set @ address", "Value", "set @ address")
			for i := range c.CPUTemps {
				fmt.Fprintf(out, fourColumn,
					cell(int(c.CPUTemps[i].Value), "°C"), addrCell(c.CPUTemps[i].Address),
					cell(int(c.GPUTemps[i].Value), "°C"), addrCell(c.GPUTemps[i].Address))
			}
			fmt.Fprintln(out)
			for i := range c.CPUFanSpeeds {
				fmt.Fprintf(out, fourColumn,
					cell(int(c.CPUFanSpeeds[i].Value), "%"), addrCell(c.CPUFanSpeeds[i].Address),
					cell(int(c.GPUFanSpeeds[i].Value), "%"), addrCell(c.GPUFanSpeeds[i].Address))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(firmwareCmd)
}
