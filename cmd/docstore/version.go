package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/docstore/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Показать версию",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "docstore", config.Version)
	},
}
