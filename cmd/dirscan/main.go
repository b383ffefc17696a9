package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dirscan",
		Short:   "Scan directories for structure, statistics and duplicate files",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
