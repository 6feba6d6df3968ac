package main

import (
	"os"

	"github.com/baack/wget2/cmd"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	os.Exit(cmd.Execute(Version, os.Args[1:]))
}
