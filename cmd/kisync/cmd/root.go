package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "kisync",
	Short: "Synchronize a declared circuit IR into KiCad schematic files",
	Long: `kisync keeps a declarative circuit description and a KiCad schematic
project in sync, in either direction:

  kisync sync project/ declared.json    # apply declared.json into project/*.kicad_sch
  kisync plan project/ declared.json    # show what sync would do, without writing`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug-level) logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to kisync.yaml (defaults to <project_root>/kisync.yaml if present)")
}

func setupLogging() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}
