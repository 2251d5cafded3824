package main

import "github.com/shimomut/tfm/cmd/tfm/cmd"

func main() {
	cmd.Execute()
}
