package main

import "github.com/reglint/reglint/cmd"

func main() {
	cmd.Execute()
}
