package main

import (
	"context"
	"fmt"
	"os"

	"hotel-monitor/cli"
)

func main() {
	// ================== Bootstrap ====================
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
