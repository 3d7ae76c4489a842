// The main package for the gplay-aso executable.
package main

import (
	"github.com/JakeFAU/gplay-aso/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
