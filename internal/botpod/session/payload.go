package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/autopeer-io/botpod/internal/botpod/core"
)

// UnloadPayload names the pod an unload signal is about. Any one field is enough.
type UnloadPayload struct {
	BotName   string `json:"botName,omitempty"`
	PodID     string `json:"podId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Empty reports whether the payload names nothing.
func (p UnloadPayload) Empty() bool {
	return p.BotName == "" && p.PodID == "" && p.SessionID == ""
}

// ParseUnloadPayload reads the body of a page-unload beacon.
//
// Beacons cannot be relied on to set a content type, so a body that is not
// valid JSON or form data is taken as the bare bot name.
func ParseUnloadPayload(contentType string, body []byte) (UnloadPayload, error) {
	body = bytes.TrimSpace(body)
	mediaType, _, _ := mime.ParseMediaType(contentType)

	var p UnloadPayload
	switch {
	case len(body) > 0 && body[0] == '{':
		if err := json.Unmarshal(body, &p); err != nil {
			if mediaType == "application/json" {
				return UnloadPayload{}, errors.Join(core.ErrInvalidRequest, err)
			}
			p = UnloadPayload{BotName: string(body)}
		}
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return UnloadPayload{}, errors.Join(core.ErrInvalidRequest, err)
		}
		p = UnloadPayload{
			BotName:   values.Get("botName"),
			PodID:     values.Get("podId"),
			SessionID: values.Get("sessionId"),
		}
	case len(body) > 0 && body[0] == '"':
		name, err := strconv.Unquote(string(body))
		if err != nil {
			name = string(body)
		}
		p = UnloadPayload{BotName: name}
	default:
		p = UnloadPayload{BotName: string(body)}
	}

	p.BotName = strings.TrimSpace(p.BotName)
	p.PodID = strings.TrimSpace(p.PodID)
	p.SessionID = strings.TrimSpace(p.SessionID)

	if p.Empty() {
		return UnloadPayload{}, errors.Join(core.ErrInvalidRequest, errors.New("bot name is required"))
	}
	return p, nil
}
