package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/sydlexius/trackmend/internal/event"
)

// formatPayload returns the request body and content-type for a webhook delivery.
func formatPayload(w *Webhook, e event.Event) ([]byte, string) {
	switch w.Type {
	case TypeDiscord:
		return formatDiscord(e)
	case TypeSlack:
		return formatSlack(e)
	case TypeGotify:
		return formatGotify(e)
	default:
		return formatGeneric(e)
	}
}

func formatGeneric(e event.Event) ([]byte, string) {
	body, _ := json.Marshal(map[string]any{
		"event":     string(e.Type),
		"timestamp": e.Timestamp,
		"data":      e.Data,
	})
	return body, "application/json"
}

func formatDiscord(e event.Event) ([]byte, string) {
	body, _ := json.Marshal(map[string]any{
		"embeds": []map[string]any{
			{
				"title":       "trackmend: " + string(e.Type),
				"description": describe(e),
				"color":       0x2ecc71,
				"timestamp":   e.Timestamp.Format("2006-01-02T15:04:05Z"),
			},
		},
	})
	return body, "application/json"
}

func formatSlack(e event.Event) ([]byte, string) {
	body, _ := json.Marshal(map[string]any{
		"text": fmt.Sprintf("*trackmend: %s*\n%s", e.Type, describe(e)),
	})
	return body, "application/json"
}

func formatGotify(e event.Event) ([]byte, string) {
	body, _ := json.Marshal(map[string]any{
		"title":   "trackmend: " + string(e.Type),
		"message": describe(e),
	})
	return body, "application/json"
}

// describe renders a one-line human summary of the event.
func describe(e event.Event) string {
	d := e.Data
	if d == nil {
		return string(e.Type)
	}
	if msg, ok := d["message"].(string); ok {
		return msg
	}
	switch e.Type {
	case event.DedupeCompleted:
		return fmt.Sprintf("Removed %v duplicate files, freed %v bytes (%v errors)",
			d["files_removed"], d["space_freed_bytes"], d["errors"])
	case event.WishlistCompleted:
		return fmt.Sprintf("Wishlist item completed: %v - %v", d["artist"], d["title"])
	case event.JobFailed:
		return fmt.Sprintf("%v job failed: %v", d["kind"], d["error"])
	}
	b, _ := json.Marshal(d)
	return string(b)
}
