// ZeroGravis Oracle Command Center CLI
package main

import "github.com/oguzhaangumuss/zer0gravis-command-center/internal/cli"

func main() {
	cli.Execute()
}
