// The main package for the ingestor executable.
package main

import (
	"github.com/arremate/ingestor/cmd"
)

func main() {
	cmd.Execute()
}
