package app

import (
	"fmt"

	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/botpod/cmd/botpod-server/app/options"
	"github.com/autopeer-io/botpod/pkg/app"
	"github.com/autopeer-io/botpod/pkg/log"
)

const (
	commandName = "botpod-server"
	commandDesc = `The botpod server wakes the remote pods behind conferencing bots on demand,
tracks their status and shuts them down exactly once when the session bound to
them ends, whichever exit signal arrives first.`
)

func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		commandName,
		"Launch the botpod lifecycle server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithEnvPrefix("BOTPOD"),
		app.WithConfigWatch(reloadLogLevel),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewBotpodServer()
		if err != nil {
			return fmt.Errorf("failed to create botpod server: %w", err)
		}

		return server.Run(ctx)
	}
}

func reloadLogLevel(v *viper.Viper) {
	level := v.GetString("log.level")
	if err := log.SetLevel(level); err != nil {
		log.Error(err, "Ignoring invalid log level from config", "level", level)
		return
	}
	log.Info("Log level updated", "level", level)
}
