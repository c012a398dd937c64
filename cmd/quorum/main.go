package main

import "github.com/quorumlabs/quorum/internal/cli"

func main() {
	cli.Execute()
}
