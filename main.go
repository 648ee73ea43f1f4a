package main

import "github.com/jjenkins/factbase/cmd"

func main() {
	cmd.Execute()
}
