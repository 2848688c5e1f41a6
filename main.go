package main

import "github.com/tessera-db/tessera/cmd"

func main() {
	cmd.Execute()
}
