package main

import "github.com/dani-ai/dani/cmd"

func main() {
	cmd.Execute()
}
