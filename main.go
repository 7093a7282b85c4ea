package main

import "github.com/vedsharma/analyze-request/cmd"

func main() {
	cmd.Execute()
}
