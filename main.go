package main

import "github.com/fakeyudi/typetrace/cmd"

func main() {
	cmd.Execute()
}
