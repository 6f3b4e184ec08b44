// Package webhook implements the inbound channel webhook surface and the
// admin/dashboard HTTP API. Each tenant registers one webhook URL per
// platform at integration time; the URL's business id segment lets the
// handler resolve a principal before the dedup/engine path ever needs to
// open a request body.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahmadsadek12/convoyd/internal/dispatch"
	"github.com/ahmadsadek12/convoyd/internal/logging"
	"github.com/ahmadsadek12/convoyd/internal/runtime"
)

// inboundEnvelope is the normalized shape every platform parser reduces its
// native payload to before the rest of the pipeline runs.
type inboundEnvelope struct {
	ProviderMessageID string
	FromCustomer      string
	Text              string
}

type platformParser func(body []byte) (inboundEnvelope, error)

var platformParsers = map[string]platformParser{
	"telegram":  parseTelegramUpdate,
	"whatsapp":  parseWhatsAppNotification,
	"instagram": parseMessengerEvent,
	"facebook":  parseMessengerEvent,
}

// InboundHandler ingests per-platform webhook deliveries, dedups by
// (platform, provider_message_id), resolves the owning business, and
// enqueues the message onto that customer's FIFO dispatcher.
type InboundHandler struct {
	dedup        *Deduplicator
	integrations *dispatch.IntegrationStore
	dispatcher   *dispatch.Dispatcher
	manager      *runtime.DispatcherManager
}

// NewInboundHandler builds an InboundHandler wired to the engine's
// per-session dispatcher manager and the outbound façade used to write
// replies back to the originating channel.
func NewInboundHandler(dedup *Deduplicator, integrations *dispatch.IntegrationStore, dispatcher *dispatch.Dispatcher, manager *runtime.DispatcherManager) *InboundHandler {
	return &InboundHandler{dedup: dedup, integrations: integrations, dispatcher: dispatcher, manager: manager}
}

// ServeHTTP handles one inbound delivery at
// /webhooks/{platform}/{business_id}. It responds 2xx immediately once the
// message is queued on the session's in-process dispatcher; the engine's
// reply is produced asynchronously by that dispatcher.
func (h *InboundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	businessID := chi.URLParam(r, "business_id")

	parse, ok := platformParsers[platform]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_platform", "no parser registered for platform "+platform)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
		return
	}

	msg, err := parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if msg.Text == "" {
		// Non-text deliveries (read receipts, reactions, media without a
		// caption) are acknowledged and dropped; there is nothing for the
		// tool-dispatching engine to act on.
		writeData(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if h.dedup.SeenBefore(platform, msg.ProviderMessageID) {
		writeData(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	key := runtime.SessionKey{OwnerUserID: businessID, CustomerPhone: msg.FromCustomer, Platform: platform}
	writer := &outboundWriter{dispatcher: h.dispatcher, businessID: businessID, platform: platform, to: msg.FromCustomer}

	// Enqueue gets context.Background() rather than the request context; the
	// dispatcher's own goroutine runs the turn with its own lifetime, so a
	// slow LLM turn never holds this HTTP response open.
	if err := h.manager.Enqueue(context.Background(), key, &runtime.Message{
		Text:          msg.Text,
		OwnerUserID:   businessID,
		CustomerPhone: msg.FromCustomer,
		Platform:      platform,
	}, writer); err != nil {
		logging.Logger().Error("enqueue inbound message failed", "platform", platform, "business_id", businessID, "err", err)
		writeError(w, http.StatusInternalServerError, "enqueue_failed", "could not queue message for processing")
		return
	}

	writeData(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// outboundWriter adapts the engine's runtime.ResponseWriter interface onto
// the outbound dispatch façade, so Agent.HandleMessage's final reply is
// delivered back through the same channel it arrived on.
type outboundWriter struct {
	dispatcher *dispatch.Dispatcher
	businessID string
	platform   string
	to         string
}

func (o *outboundWriter) WriteMessage(ctx context.Context, text string) error {
	return o.dispatcher.Send(ctx, o.businessID, o.platform, o.to, dispatch.Payload{Kind: dispatch.PayloadText, Text: text})
}

func parseTelegramUpdate(body []byte) (inboundEnvelope, error) {
	var update struct {
		UpdateID int64 `json:"update_id"`
		Message  struct {
			MessageID int64  `json:"message_id"`
			Text      string `json:"text"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return inboundEnvelope{}, err
	}
	return inboundEnvelope{
		ProviderMessageID: jsonInt(update.Message.MessageID),
		FromCustomer:      jsonInt(update.Message.Chat.ID),
		Text:              update.Message.Text,
	}, nil
}

func parseWhatsAppNotification(body []byte) (inboundEnvelope, error) {
	var notification struct {
		Entry []struct {
			Changes []struct {
				Value struct {
					Messages []struct {
						ID   string `json:"id"`
						From string `json:"from"`
						Text struct {
							Body string `json:"body"`
						} `json:"text"`
					} `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &notification); err != nil {
		return inboundEnvelope{}, err
	}
	for _, entry := range notification.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				return inboundEnvelope{ProviderMessageID: m.ID, FromCustomer: m.From, Text: m.Text.Body}, nil
			}
		}
	}
	return inboundEnvelope{}, nil
}

func parseMessengerEvent(body []byte) (inboundEnvelope, error) {
	var notification struct {
		Entry []struct {
			Messaging []struct {
				Sender struct {
					ID string `json:"id"`
				} `json:"sender"`
				Message struct {
					MID  string `json:"mid"`
					Text string `json:"text"`
				} `json:"message"`
			} `json:"messaging"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &notification); err != nil {
		return inboundEnvelope{}, err
	}
	for _, entry := range notification.Entry {
		for _, m := range entry.Messaging {
			return inboundEnvelope{ProviderMessageID: m.Message.MID, FromCustomer: m.Sender.ID, Text: m.Message.Text}, nil
		}
	}
	return inboundEnvelope{}, nil
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
