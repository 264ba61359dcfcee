package main

import "github.com/blihweb/blihweb/cmd/blihctl/cmd"

func main() {
	cmd.Execute()
}
