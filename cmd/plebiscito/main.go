// Command plebiscito runs the decentralized GPU/CPU job scheduler
// described in internal/cli: run a fleet against a dataset, inspect a
// prior run's outcomes, or print the build version.
package main

import "github.com/plebiscito-net/plebiscito/internal/cli"

func main() {
	cli.Execute()
}
