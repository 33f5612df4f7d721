package main

import "github.com/afoley587/coding-challenges-2025/usersvc/cmd"

func main() {
	cmd.Execute()
}
