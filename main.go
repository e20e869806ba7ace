package main

import "insightforge.com/insightforge/cmd"

func main() {
	cmd.Execute()
}
