package main

import (
	"weradio/cmd"
)

func main() {
	cmd.Execute()
}
