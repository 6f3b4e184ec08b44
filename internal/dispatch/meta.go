package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// metaGraphSender sends through Meta's Graph API, which backs the WhatsApp
// Cloud API, Instagram Messaging, and Facebook Messenger alike. The three
// channels share one request shape (a bearer token plus a JSON envelope
// addressed by phone/page id), so one implementation serves all three
// factories below.
type metaGraphSender struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	senderID    string // phone_number_id (WhatsApp) or page id (IG/FB)
}

const metaGraphBaseURL = "https://graph.facebook.com/v19.0"

func newMetaGraphSender(creds Credentials) *metaGraphSender {
	return &metaGraphSender{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     metaGraphBaseURL,
		accessToken: creds.AccessToken,
		senderID:    creds.PhoneOrPageID,
	}
}

// NewWhatsAppSenderFactory builds senders against the WhatsApp Cloud API.
func NewWhatsAppSenderFactory() SenderFactory {
	return func(creds Credentials) (Sender, error) {
		return &whatsAppSender{metaGraphSender: newMetaGraphSender(creds)}, nil
	}
}

// NewInstagramSenderFactory builds senders against Instagram Messaging.
func NewInstagramSenderFactory() SenderFactory {
	return func(creds Credentials) (Sender, error) {
		return &messengerSender{metaGraphSender: newMetaGraphSender(creds)}, nil
	}
}

// NewFacebookSenderFactory builds senders against Facebook Messenger.
func NewFacebookSenderFactory() SenderFactory {
	return func(creds Credentials) (Sender, error) {
		return &messengerSender{metaGraphSender: newMetaGraphSender(creds)}, nil
	}
}

type whatsAppSender struct{ *metaGraphSender }

// SendMessage implements Sender for the WhatsApp Cloud API message shape.
func (s *whatsAppSender) SendMessage(ctx context.Context, to string, payload Payload) error {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
	}
	switch payload.Kind {
	case PayloadImage:
		body["type"] = "image"
		body["image"] = map[string]string{"link": payload.ImageURL, "caption": payload.Text}
	case PayloadTemplate:
		body["type"] = "template"
		body["template"] = whatsAppTemplate(payload)
	default:
		body["type"] = "text"
		body["text"] = map[string]string{"body": payload.Text}
	}
	return s.post(ctx, fmt.Sprintf("/%s/messages", s.senderID), body)
}

func whatsAppTemplate(payload Payload) map[string]any {
	params := make([]map[string]string, 0, len(payload.TemplateParams))
	for _, v := range payload.TemplateParams {
		params = append(params, map[string]string{"type": "text", "text": v})
	}
	return map[string]any{
		"name":     payload.TemplateName,
		"language": map[string]string{"code": "en_US"},
		"components": []map[string]any{
			{"type": "body", "parameters": params},
		},
	}
}

// messengerSender implements the shared send-api shape used by both
// Instagram Messaging and Facebook Messenger.
type messengerSender struct{ *metaGraphSender }

// SendMessage implements Sender for the Messenger Send API message shape.
func (s *messengerSender) SendMessage(ctx context.Context, to string, payload Payload) error {
	message := map[string]any{"text": payload.Text}
	if payload.Kind == PayloadImage {
		message = map[string]any{
			"attachment": map[string]any{
				"type":    "image",
				"payload": map[string]string{"url": payload.ImageURL},
			},
		}
	}
	body := map[string]any{
		"recipient": map[string]string{"id": to},
		"message":   message,
	}
	return s.post(ctx, "/me/messages", body)
}

func (s *metaGraphSender) post(ctx context.Context, path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal graph api request: %w", err)
	}

	url := s.baseURL + path + "?access_token=" + s.accessToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graph api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call graph api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph api returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
