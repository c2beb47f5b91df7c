package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"requisition-api-server/config"
	"requisition-api-server/internal/models"
	"requisition-api-server/internal/socket"
	"requisition-api-server/internal/store"
)

// Dispatcher is the single notification path: every workflow event is queued
// as a document, pushed to connected WebSocket clients, and mailed through the
// webhook when one is configured. Delivery is fire-and-forget; a failure is
// logged and never surfaces to the action that raised the event.
type Dispatcher struct {
	Store   store.Store
	Hub     *socket.Hub
	Webhook config.NotifyConfig
	AppURL  string

	client *http.Client
}

func NewDispatcher(s store.Store, hub *socket.Hub, webhook config.NotifyConfig, appURL string) *Dispatcher {
	return &Dispatcher{
		Store:   s,
		Hub:     hub,
		Webhook: webhook,
		AppURL:  appURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish raises a workflow event. It never returns an error.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload map[string]any) {
	payload = store.SanitizeMap(payload)

	queued := models.QueuedNotification{
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Sent:      false,
		Data:      payload,
	}
	if _, err := d.Store.Add(ctx, store.ColNotificationQueue, queued); err != nil {
		log.Printf("notification queue write failed (type=%s): %v", eventType, err)
	}

	if d.Hub != nil {
		event := map[string]any{"type": eventType, "data": payload}
		if email := pick(payload, "requesterEmail", "requestedBy"); email != "" {
			if err := d.Hub.Send(email, event); err != nil {
				log.Printf("notification push to %s failed: %v", email, err)
			}
		}
		d.Hub.BroadcastRole(event, "manager", "admin")
	}

	if d.Webhook.WebhookURL == "" {
		return
	}
	content, ok := d.BuildContent(ctx, eventType, payload)
	if !ok {
		log.Printf("notification skipped: no recipient for type=%s, set Manager Email on the request or add manager/admin users", eventType)
		return
	}
	go d.sendWebhook(eventType, content)
}

func (d *Dispatcher) sendWebhook(eventType string, content *Content) {
	body := map[string]string{
		"secret":  d.Webhook.WebhookSecret,
		"to":      content.To,
		"subject": content.Subject,
		"html":    content.HTML,
	}
	if content.CC != "" {
		body["cc"] = content.CC
	}
	raw, err := json.Marshal(body)
	if err != nil {
		log.Printf("notification webhook marshal failed (type=%s): %v", eventType, err)
		return
	}
	resp, err := d.client.Post(d.Webhook.WebhookURL, "application/json", bytes.NewReader(raw))
	if err != nil {
		log.Printf("notification webhook failed (type=%s): %v", eventType, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("notification webhook returned %d (type=%s, to=%s)", resp.StatusCode, eventType, content.To)
		return
	}
	log.Printf("notification sent (type=%s, to=%s)", eventType, content.To)
}
