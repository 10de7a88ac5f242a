package main

import "github.com/tanq16/linkrelay/cmd"

func main() {
	cmd.Execute()
}
