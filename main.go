// Command ancvm runs the stack-based bytecode VM's CLI: see package cmd for
// the run/link/image-inspect subcommands.
package main

import "github.com/hemashushu/ancvm/cmd"

func main() {
	cmd.Main()
}
