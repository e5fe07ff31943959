package main

import "duplifind/cmd"

func main() {
	cmd.Execute()
}
