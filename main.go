package main

import "crates/cmd"

func main() {
	cmd.Execute()
}
