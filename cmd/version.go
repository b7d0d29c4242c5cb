package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Данные сборки, задаются через -ldflags
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия программы",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("attendance %s\n", Version)
		fmt.Printf("  Коммит: %s\n", CommitSHA)
		fmt.Printf("  Сборка: %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
