// The main package for the hotdash executable.
package main

import (
	"github.com/JakeFAU/hotspot-dashboard/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
