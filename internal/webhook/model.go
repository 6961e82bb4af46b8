package webhook

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/sydlexius/trackmend/internal/event"
)

// Webhook is an outbound notification endpoint from the config file.
type Webhook struct {
	Name   string   `yaml:"name" json:"name"`
	URL    string   `yaml:"url" json:"url"`
	Type   string   `yaml:"type" json:"type"`
	Events []string `yaml:"events" json:"events"`
}

// Webhook types.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeGotify  = "gotify"
)

// Validate checks the URL, type, and event names. An empty type means generic.
func (w *Webhook) Validate() error {
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook %q: url must be an absolute http(s) URL", w.Name)
	}
	switch w.Type {
	case "", TypeGeneric, TypeDiscord, TypeSlack, TypeGotify:
	default:
		return fmt.Errorf("webhook %q: unknown type %q", w.Name, w.Type)
	}
	for _, name := range w.Events {
		if !slices.Contains(event.AllTypes, event.Type(name)) {
			return fmt.Errorf("webhook %q: unknown event %q", w.Name, name)
		}
	}
	return nil
}

// Wants reports whether the webhook subscribes to t. No events means all.
func (w *Webhook) Wants(t event.Type) bool {
	return len(w.Events) == 0 || slices.Contains(w.Events, string(t))
}
