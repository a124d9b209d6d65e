// ABOUTME: Version information for the bridge programs
// ABOUTME: Reported by --version and in the startup log line
package version

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const (
	Version = "0.3.0"
	Product = "Sendspin Bridge"
)

// String is the product name with its version
func String() string { return Product + " " + Version }

// Startup formats the first log line of a program. role is "sender" or
// "receiver"; subject names what it serves.
func Startup(role, subject string) string {
	return fmt.Sprintf("Starting %s %s %s: %s", Product, role, Version, subject)
}

// PrintVersion is the cli version printer of both programs
func PrintVersion(c *cli.Context) {
	fmt.Fprintf(c.App.Writer, "%s (%s)\n", c.App.Name, String())
}
