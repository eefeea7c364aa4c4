package main

import "github.com/KaramelBytes/fairloan-cli/cmd"

func main() {
	cmd.Execute()
}
