package main

import (
	"os"

	"github.com/autopeer-io/botpod/cmd/botpodctl/app"
)

func main() {
	if err := app.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
