package core

import (
	"context"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

// NopNotifier drops every intent.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *model.Intent) error { return nil }

// NopEventSource never delivers a disconnect. Disconnects then only arrive over HTTP.
type NopEventSource struct{}

func (NopEventSource) SubscribeDisconnect(context.Context, string, func()) (func(), error) {
	return func() {}, nil
}

// NopNavigator ignores navigation requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(string, string) {}
