// Package adapter converts raw MQTT payloads into typed handler calls.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/autopeer-io/botpod/pkg/log"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
)

// TypedHandlerFunc handles one decoded message.
type TypedHandlerFunc[T any] func(ctx context.Context, topic string, msg *T) error

// Decode unmarshals a JSON payload into a new T. An empty payload yields the zero value.
func Decode[T any](payload []byte) (*T, error) {
	msg := new(T)
	if len(bytes.TrimSpace(payload)) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return msg, nil
}

// JSONHandler adapts a typed handler to a pkg/mqtt MessageHandler.
// Decode and handler errors are logged, since MQTT has nobody to return them to.
func JSONHandler[T any](handler TypedHandlerFunc[T]) pkgmqtt.MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) {
		msg, err := Decode[T](payload)
		if err != nil {
			log.Warn("Dropping malformed MQTT message", "topic", topic, "error", err.Error())
			return
		}
		if err := handler(ctx, topic, msg); err != nil {
			log.Error(err, "MQTT message handler failed", "topic", topic)
		}
	}
}
