package main

import "github.com/funvibe/tyunify/pkg/cli"

func main() {
	cli.Run()
}
