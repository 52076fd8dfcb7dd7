// ms365-mcp is an MCP server exposing Microsoft 365 automation skills: a
// sandboxed script engine over a closed Graph capability surface, plus a
// durable, searchable skill library.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
