// Wyvern control - direct EC access from the command line
//
// wyvernctl reads and writes the MSI embedded controller registers
// directly through the ec_sys debugfs interface; no daemon involved.
// Everything it does needs the register file present, which means
// ec_sys loaded with write_support=1 and, in practice, root.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icesealed/wyvern/internal/ec"
	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/config"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/profile"
)

// version is stamped by the linker on release builds.
var version = "dev"

// Global flags, bound on the root command.
var (
	confPath string
	ioPath   string
)

// Column formats shared by every value@address table.
const (
	twoColumn   = "%-11s %s\n"
	threeColumn = "%-11s %-20s %s\n"
	fourColumn  = "%-11s %-20s %-11s %s\n"
	cpuGPURule  = "-----------CPU-----------        -----------GPU-----------"
)

var rootCmd = &cobra.Command{
	Use:   "wyvernctl",
	Short: "Control the embedded controller on MSI laptops.",
	Long: `wyvernctl reads and writes the MSI embedded controller directly through
the ec_sys debugfs register file. Fan profiles and register addresses
live in an isw-compatible INI file (default /etc/isw.conf); writes
require root and the ec_sys module loaded with write_support=1.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", "/etc/isw.conf", "profile configuration file")
	rootCmd.PersistentFlags().StringVar(&ioPath, "ec", ec.DefaultIOPath, "EC register file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+renderError(err))
		os.Exit(1)
	}
}

// renderError appends the fix for the one failure every new user hits:
// the register file not being there.
func renderError(err error) string {
	if errors.Is(err, ec.ErrNotAvailable) {
		return err.Error() + "\n  load the kernel module first: modprobe ec_sys write_support=1"
	}
	return err.Error()
}

func newStore() *profile.Store {
	return profile.NewStore(confPath)
}

// openEngine opens the register file read-write and returns the engine
// plus a release func. Engine logging goes to stderr at error level so
// tables on stdout stay clean.
func openEngine() (*engine.Engine, func(), error) {
	tr, err := ec.Open(ioPath)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	}, version)
	return engine.New(tr, log), func() { _ = tr.Close() }, nil
}

// printWrite prints one value@address row for a completed register
// write, in the two-column layout.
func printWrite(cmd *cobra.Command, addr uint32, value byte) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, twoColumn, "Value", "set @ address")
	fmt.Fprintf(out, twoColumn, cell(int(value), ""), addrCell(addr))
}

// cell renders "0x2c(44°C)" style value cells; unit may be empty.
func cell(value int, unit string) string {
	return fmt.Sprintf("%#02x(%d%s)", value, value, unit)
}

// addrCell renders "0xf4(byte244)" style address cells.
func addrCell(addr uint32) string {
	return fmt.Sprintf("%#02x(byte%d)", addr, addr)
}
