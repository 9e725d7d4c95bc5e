package main

import "shelfwise/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
