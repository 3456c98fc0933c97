package main

import "github.com/visionid/visionid/cmd"

func main() {
	cmd.Execute()
}
