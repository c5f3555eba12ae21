package main

import "github.com/bensku/zoneport/cmd"

func main() {
	cmd.Execute()
}
