// Package cmd wires tfm's cobra command tree. Only one real subcommand
// exists (the root itself launches the TUI); the "version" leaf command is
// defined alongside the root in this file.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagLeftDir  string
	flagRightDir string
	flagConfig   string

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "tfm",
	Short:   "tfm - a dual-pane, keyboard-driven terminal file manager",
	Version: version,
	RunE: func(c *cobra.Command, args []string) error {
		return runApp(flagLeftDir, flagRightDir, flagConfig)
	},
}

func init() {
	home, _ := os.UserHomeDir()
	rootCmd.Flags().StringVar(&flagLeftDir, "left", home, "initial directory for the left pane")
	rootCmd.Flags().StringVar(&flagRightDir, "right", home, "initial directory for the right pane")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config.yaml (default ~/.tfm/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the tfm version",
	Run: func(c *cobra.Command, args []string) {
		fmt.Println("tfm " + version)
	},
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
