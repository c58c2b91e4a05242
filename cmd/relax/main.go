package main

import "github.com/rainbowrelax/relax-cli/internal/cli"

func main() {
	cli.Execute()
}
