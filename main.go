package main

import "github.com/Yates-Labs/storyrag/cmd"

func main() {
	cmd.Execute()
}
