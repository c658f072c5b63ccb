package main

import "github.com/diogo/muralguide/internal/commands"

func main() {
	commands.Execute()
}
