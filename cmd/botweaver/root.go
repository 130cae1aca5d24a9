package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "botweaver",
	Short: "Botweaver turns a serialized conversation graph into a running Telegram agent",
	Long: `Botweaver compiles a visual conversation graph (nodes, connections,
buttons, conditions) into a chat agent: conditional rendering, inline and
reply keyboards, typed input collection, multi-select accumulation, and
automatic transition chains.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
