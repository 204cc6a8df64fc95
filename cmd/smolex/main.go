package main

import "github.com/mvp-joe/smolex/internal/cli"

func main() {
	cli.Execute()
}
