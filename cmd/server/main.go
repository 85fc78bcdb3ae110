// ABOUTME: Standalone MCP server entry point with stdio transport
// ABOUTME: Equivalent to `riskmem mcp`, for MCP clients that launch a dedicated binary
package main

import (
	"fmt"
	"os"

	"github.com/harper/riskmem/cmd/riskmem/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version, "none", "unknown")

	root := commands.NewRootCmd()
	root.SetArgs(append([]string{"mcp"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
