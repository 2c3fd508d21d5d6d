// Package main implements the tensorvm CLI.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tensorvm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "tensorvm",
	Short: "tensorvm graph compiler",
	Long:  `tensorvm lowers tensor computation graphs into VM instruction streams`,
}

func main() {
	rootCmd.Version = version.Short()

	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// setupColor applies the --color mode to the global color state.
func setupColor(cmd *cobra.Command) {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		mode = "auto"
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
