package main

import "github.com/blihweb/blihweb/cmd/blihweb/cmd"

func main() {
	cmd.Execute()
}
