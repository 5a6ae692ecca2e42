package main

import "github.com/MeKo-Tech/panorama/cmd/panorama/cmd"

func main() {
	cmd.Execute()
}
