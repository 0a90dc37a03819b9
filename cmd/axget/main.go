package main

import "github.com/oshokin/axget/cmd/axget/cmd"

func main() {
	cmd.Execute()
}
