package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/botpod/cmd/botpod-server/app"
)

func main() {
	app.NewApp().Run()
}
