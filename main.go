package main

import "transitportal/internal/cli"

func main() {
	cli.Execute()
}
