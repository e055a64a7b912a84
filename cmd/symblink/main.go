package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/symblink/internal/cli"
	"github.com/arthur-debert/symblink/pkg/ui/styles"
)

func main() {
	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.Get("Error").Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}
