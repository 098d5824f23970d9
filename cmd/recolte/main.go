package main

import (
	"os"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/recolte/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
