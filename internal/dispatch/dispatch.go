// Package dispatch implements the channel-agnostic outbound façade:
// send(tenant, channel, to, payload) over the WhatsApp, Telegram,
// Instagram, and Facebook senders. The engine never calls a sender
// directly; it always emits through Dispatcher.Send, so swapping or adding
// a channel never touches agent or runtime code.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahmadsadek12/convoyd/internal/logging"
)

// PayloadKind names one of the outbound message shapes senders must
// support: text, image (URL or buffer), or template.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadImage    PayloadKind = "image"
	PayloadTemplate PayloadKind = "template"
)

// Payload is one outbound message, shaped by Kind.
type Payload struct {
	Kind PayloadKind

	// Text is the message body for PayloadText, or the caption for
	// PayloadImage.
	Text string

	// ImageURL is a hosted image location for PayloadImage. Senders that
	// need an uploaded buffer instead fetch it from this URL.
	ImageURL string

	// TemplateName and TemplateParams describe a PayloadTemplate message
	// (e.g. a WhatsApp message-template send outside the 24h session
	// window).
	TemplateName   string
	TemplateParams map[string]string
}

// Sender is the uniform interface every channel adapter implements.
type Sender interface {
	SendMessage(ctx context.Context, to string, payload Payload) error
}

// Credentials are one tenant's per-platform integration record, loaded from
// bot_integrations.
type Credentials struct {
	BusinessID    string
	Platform      string
	AccessToken   string
	PhoneOrPageID string
}

// CredentialsStore resolves a tenant's channel credentials.
type CredentialsStore interface {
	Get(ctx context.Context, businessID, platform string) (Credentials, error)
}

// SenderFactory builds a Sender bound to one tenant's credentials for a
// named platform.
type SenderFactory func(creds Credentials) (Sender, error)

// Dispatcher is the channel-agnostic façade engine code sends through. It
// caches one Sender per (business_id, platform) pair so repeated sends
// reuse an already-authenticated client (e.g. a connected Telegram
// bot.Bot).
type Dispatcher struct {
	creds     CredentialsStore
	factories map[string]SenderFactory

	mu      sync.Mutex
	senders map[string]Sender
}

// New builds a Dispatcher over creds, with one SenderFactory registered per
// supported platform name.
func New(creds CredentialsStore, factories map[string]SenderFactory) *Dispatcher {
	return &Dispatcher{
		creds:     creds,
		factories: factories,
		senders:   make(map[string]Sender),
	}
}

// Send resolves businessID's credentials for platform, builds or reuses a
// Sender, and delivers payload to to. Failures are returned to the caller,
// which logs and does not retry from within the same turn.
func (d *Dispatcher) Send(ctx context.Context, businessID, platform, to string, payload Payload) error {
	factory, ok := d.factories[platform]
	if !ok {
		return fmt.Errorf("dispatch: no sender registered for platform %q", platform)
	}

	sender, err := d.senderFor(ctx, businessID, platform, factory)
	if err != nil {
		return fmt.Errorf("dispatch: resolve sender for %s/%s: %w", businessID, platform, err)
	}

	if err := sender.SendMessage(ctx, to, payload); err != nil {
		return fmt.Errorf("dispatch: send via %s: %w", platform, err)
	}
	logging.Logger().Debug("outbound message dispatched", "business_id", businessID, "platform", platform, "kind", payload.Kind)
	return nil
}

func (d *Dispatcher) senderFor(ctx context.Context, businessID, platform string, factory SenderFactory) (Sender, error) {
	cacheKey := businessID + ":" + platform

	d.mu.Lock()
	if s, ok := d.senders[cacheKey]; ok {
		d.mu.Unlock()
		return s, nil
	}
	d.mu.Unlock()

	creds, err := d.creds.Get(ctx, businessID, platform)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	sender, err := factory(creds)
	if err != nil {
		return nil, fmt.Errorf("build sender: %w", err)
	}

	d.mu.Lock()
	d.senders[cacheKey] = sender
	d.mu.Unlock()
	return sender, nil
}

// Invalidate drops a cached sender, forcing the next Send to rebuild it
// from fresh credentials. Call after a credential refresh.
func (d *Dispatcher) Invalidate(businessID, platform string) {
	d.mu.Lock()
	delete(d.senders, businessID+":"+platform)
	d.mu.Unlock()
}
