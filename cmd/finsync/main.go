package main

import "github.com/finsync-io/finsync/internal/cli"

func main() {
	cli.Execute()
}
