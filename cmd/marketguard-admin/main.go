package main

import (
	"github.com/turtacn/marketguard/cmd/cli"
)

// main delegates to the cli package.
func main() {
	cli.Execute()
}
