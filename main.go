package main

import "github.com/RyanBlaney/sonido-maestro/cmd"

func main() {
	cmd.Execute()
}
