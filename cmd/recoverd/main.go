package main

import "github.com/ductran/recoverd/internal/cli"

func main() {
	cli.Execute()
}
