package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/botweaver/botweaver/internal/graph"
)

var dotCmd = &cobra.Command{
	Use:   "dot <graph.json>",
	Short: "Export a conversation graph as Graphviz DOT",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDot(args[0]); err != nil {
			fmt.Printf("Export failed: %v\n", err)
			os.Exit(1)
		}
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(dotCmd)
}

func runDot(path string) error {
	g, err := graph.Load(path)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out, err := g.ExportDOT(name)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}
