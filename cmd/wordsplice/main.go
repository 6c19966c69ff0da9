package main

import "github.com/forPelevin/wordsplice/internal/cli"

func main() {
	cli.Main()
}
