// ./main.go
package main

import (
	"github.com/xkilldash9x/agent-browser/cmd"
)

// main is the entry point for the agent-browser application.
func main() {
	cmd.Execute()
}
