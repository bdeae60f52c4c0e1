package main

import (
	"sharkwatch/cmd/aggregator/cmd"
)

func main() {
	cmd.Execute()
}
