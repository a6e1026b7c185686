package main

import "github.com/panoraguard/alarm-console/cmd/alarmctl/cmd"

func main() {
	cmd.Execute()
}
