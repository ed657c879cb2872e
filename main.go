package main

import (
	"github.com/F12-Syntex/plantuml-chatbot/cmd"
)

func main() {
	cmd.Execute()
}
