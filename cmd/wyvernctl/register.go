package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/ec"
)

var setCmd = &cobra.Command{
	Use:   "set ADDRESS VALUE",
	Short: "Write a single byte to an EC register.",
	Long: `Writes VALUE to the register at ADDRESS. The address is hexadecimal
(with or without a 0x prefix), the value decimal 0-255. No safety net:
wyvernctl writes exactly what you asked, where you asked.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := ec.ParseAddress(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.Atoi(args[1])
		if err != nil || value < 0 || value > 255 {
			return fmt.Errorf("value must be a decimal number between 0 and 255, got %q", args[1])
		}

		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		if err := eng.WriteRegister(addr, byte(value)); err != nil {
			return err
		}
		printWrite(cmd, addr, byte(value))
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Hex dump of the full EC register space.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine()
		if err != nil {
			return err
		}
		defer done()

		data, err := eng.Dump()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\nEC dump")
		fmt.Fprintln(out, "       00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F")
		writeHexDump(out, data)
		return nil
	},
}

// writeHexDump prints data in od -A x -t x1z layout: hex offset, 16
// bytes per row, printable ASCII between > and <.
func writeHexDump(out io.Writer, data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Fprintf(out, "%06x", off)
		for _, b := range row {
			fmt.Fprintf(out, " %02x", b)
		}
		fmt.Fprint(out, "  >")
		for _, b := range row {
			if b >= 0x20 && b <= 0x7e {
				fmt.Fprintf(out, "%c", b)
			} else {
				fmt.Fprint(out, ".")
			}
		}
		fmt.Fprintln(out, "<")
	}
	fmt.Fprintf(out, "%06x\n", len(data))
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(dumpCmd)
}
