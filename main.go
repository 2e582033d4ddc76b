package main

import "github.com/drivemirror/drivemirror/internal/cli"

func main() {
	_ = cli.Execute()
}
