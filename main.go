package main

import "github.com/yeremiapane/bar-booking/cmd"

func main() {
	cmd.Execute()
}
