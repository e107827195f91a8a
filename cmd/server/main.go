package main

import "github.com/Brownie44l1/catdog-api/internal/cli"

func main() {
	cli.Execute()
}
