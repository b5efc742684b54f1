// The main package for the designscore executable.
package main

import (
	"github.com/designscore/designscore/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
