package main

import "github.com/sw33tLie/metropolis/cmd"

func main() {
	cmd.Execute()
}
