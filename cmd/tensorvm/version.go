package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tensorvm/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		setupColor(cmd)
		fmt.Println(version.Banner())
	},
}
