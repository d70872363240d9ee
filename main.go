package main

import "syncworker/cmd"

func main() {
	cmd.Execute()
}
