package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tensorvm/internal/program"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <program>",
	Short: "Print the text disassembly of an emitted program",
	Args:  cobra.ExactArgs(1),
	RunE:  disasmExecution,
}

func disasmExecution(cmd *cobra.Command, args []string) error {
	setupColor(cmd)
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	prog, err := program.Decode(f)
	if err != nil {
		return err
	}
	fmt.Print(prog.FormatColor())
	return nil
}
