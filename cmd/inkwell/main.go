package main

import "github.com/inkwell-press/inkwell/cmd/inkwell/commands"

func main() {
	commands.Execute()
}
