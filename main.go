package main

import "tagmigrate/internal/cli"

func main() {
	cli.Execute()
}
