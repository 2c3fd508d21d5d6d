// Package version carries the CLI build identity.
package version

import (
	"fmt"

	"github.com/fatih/color"
)

// Build identity, overridden at build time via -ldflags.
var (
	// Number is the semantic version of the CLI.
	Number = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var numberColor = color.New(color.FgGreen, color.Bold)

// Short returns the plain version number, suitable for cobra's --version
// flag.
func Short() string { return Number }

// Banner renders the full version report. It is called after flag parsing,
// so the colorized version number honors the --color mode.
func Banner() string {
	out := "tensorvm " + numberColor.Sprint(Number)
	if GitCommit != "" {
		out += fmt.Sprintf("\n  commit: %s", GitCommit)
	}
	if BuildDate != "" {
		out += fmt.Sprintf("\n  built:  %s", BuildDate)
	}
	return out
}
