package main

import "github.com/Simplici0/kalkia/cmd/kalkia/commands"

func main() {
	commands.Execute()
}
