package main

import "qlmodel/internal/cli"

func main() {
	cli.Execute()
}
