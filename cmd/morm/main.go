package main

import "github.com/inedumozey/morm/cmd"

func main() {
	cmd.Execute()
}
