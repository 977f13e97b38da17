package main

import "github.com/Togather-Foundation/graphevents/cmd/server/cmd"

func main() {
	cmd.Execute()
}
