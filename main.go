package main

import "wat/cmd"

func main() {
	cmd.Execute()
}
