package main

import "github.com/bryanchriswhite/WindowMirror/cmd/windowmirror/commands"

func main() {
	commands.Execute()
}
