package main

import "github.com/Arturo1s/benor/internal/cli"

func main() {
	cli.Execute()
}
