package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/botweaver/botweaver/internal/compile"
	"github.com/botweaver/botweaver/internal/graph"
)

var compileOut string

var compileCmd = &cobra.Command{
	Use:   "compile <graph.json>",
	Short: "Validate a conversation graph and emit its routing manifest",
	Long: `Parses and validates the graph, builds the routing alias table, and
writes a JSON manifest mapping every node to its alias, command, and
multi-select payloads.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCompile(args[0], compileOut); err != nil {
			fmt.Printf("Compilation failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "manifest output path (default <graph>.manifest.json)")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(path, out string) error {
	g, err := graph.Load(path)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	manifest, err := compile.BuildManifest(g, name)
	if err != nil {
		return err
	}

	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".manifest.json"
	}
	if err := manifest.WriteFile(out); err != nil {
		return err
	}

	fmt.Printf("Graph is valid. Manifest written to %s (%d nodes)\n", out, len(manifest.Entries))
	return nil
}
