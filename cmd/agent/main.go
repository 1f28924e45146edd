package main

import "a11y-agent/internal/cli"

func main() {
	cli.Execute()
}
