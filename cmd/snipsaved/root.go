package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "snipsaved",
	Short: "Automatically save Snip & Sketch screenshots from the clipboard",
	Long: `snipsaved watches the clipboard for images placed there by the system
screenshot tool and saves each genuine capture to disk as a PNG, exactly
once per capture. It runs in the background with a tray icon.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log at debug level to the console")

	rootCmd.AddCommand(newRunCmd(), newConfigCmd(), newVersionCmd())
}
