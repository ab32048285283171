// Command arca-bindgen renders the TypeScript bindings for the command
// schema. Run it after any schema change and commit the output.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/arcafs/arca/internal/command"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "o", "", "output file (default stdout)")
	flag.Parse()

	src := command.Bindings()

	if outPath == "" {
		fmt.Print(src)
		return
	}
	if err := os.WriteFile(outPath, []byte(src), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
