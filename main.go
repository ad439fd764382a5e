// The main package for the apodarchiver executable.
package main

import (
	"github.com/JakeFAU/apod-archiver/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
