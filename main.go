package main

import "github.com/hacs-community/hacs-agent/cmd"

func main() {
	cmd.Execute()
}
