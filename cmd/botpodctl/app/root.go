// Package app implements botpodctl, the operator command line for a botpod server.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autopeer-io/botpod/internal/botpod/registry"
	httpserver "github.com/autopeer-io/botpod/internal/botpod/server/http"
)

type globalOptions struct {
	server    string
	password  string
	timeout   time.Duration
	botPrefix string
}

// NewRootCommand builds botpodctl. Global flags fall back to BOTPOD_* environment variables.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	v := viper.New()

	root := &cobra.Command{
		Use:           "botpodctl",
		Short:         "Inspect and control the pods behind conferencing bots",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.server = v.GetString("server")
			opts.password = v.GetString("password")
			opts.timeout = v.GetDuration("timeout")
			opts.botPrefix = v.GetString("bot-prefix")
			if opts.server == "" {
				return errors.New("--server must not be empty")
			}
			return nil
		},
	}

	fs := root.PersistentFlags()
	fs.String("server", "http://127.0.0.1:8080", "Base URL of the botpod server ($BOTPOD_SERVER).")
	fs.String("password", "", "Password of the server login gate ($BOTPOD_PASSWORD).")
	fs.Duration("timeout", 30*time.Second, "Timeout of a single API call.")
	fs.String("bot-prefix", registry.DefaultPrefix, "Name prefix of pods that back conferencing bots.")

	v.SetEnvPrefix("BOTPOD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)

	root.AddCommand(
		newBotsCmd(opts),
		newPodsCmd(opts),
		newWakeCmd(opts),
		newShutdownCmd(opts),
		newCreateCmd(opts),
	)

	return root
}

func (o *globalOptions) client() *client {
	return newClient(o.server, o.password, o.timeout)
}

// resolveBot finds a bot by pod id or by name, with or without the prefix.
func (o *globalOptions) resolveBot(ctx context.Context, c *client, target string) (*httpserver.BotView, error) {
	bots, err := c.Bots(ctx)
	if err != nil {
		return nil, err
	}

	reg := registry.New(o.botPrefix)
	name := reg.DisplayName(reg.NormalizeName(target))
	for i := range bots {
		if bots[i].PodID == target || bots[i].Name == name {
			return &bots[i], nil
		}
	}
	return nil, fmt.Errorf("no bot named or with pod id %q", target)
}
