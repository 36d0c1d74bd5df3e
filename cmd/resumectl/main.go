package main

import "resume-editor/internal/cli"

func main() {
	cli.Execute()
}
