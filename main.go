package main

import "nathanbeddoewebdev/payq/cmd"

func main() {
	cmd.Execute()
}
