package main

import "github.com/SVAnbarasan/ZeroByX/cmd"

func main() {
	cmd.Execute()
}
