package main

import "github.com/toritsejumoju/stakepoolbackup.io/internal/cmd"

func main() {
	cmd.Execute()
}
