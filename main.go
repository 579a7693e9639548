package main

import (
	"os"

	"github.com/J-Dark-PhD/neutron-damage-trap-creation/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
