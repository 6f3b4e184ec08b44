package webhook

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadsadek12/convoyd/internal/dispatch"
	"github.com/ahmadsadek12/convoyd/internal/runtime"
)

func TestNewRouter_HealthzIsUnauthenticated(t *testing.T) {
	router := NewRouter(zerolog.Nop(), newTestInboundHandler(), newTestAdminHandler(), []string{"secret"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_AdminRoutesRequireBearerToken(t *testing.T) {
	router := NewRouter(zerolog.Nop(), newTestInboundHandler(), newTestAdminHandler(), []string{"secret"})

	req := httptest.NewRequest(http.MethodGet, "/admin/businesses/biz-1/items/item-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func newTestInboundHandler() *InboundHandler {
	manager := runtime.NewDispatcherManager(&recordingHandler{}, 8)
	dispatcher := dispatch.New(fakeCreds{}, map[string]dispatch.SenderFactory{})
	return NewInboundHandler(NewDeduplicator(), nil, dispatcher, manager)
}

func newTestAdminHandler() *AdminHandler {
	return NewAdminHandler(nil, nil, nil, nil, nil, nil)
}
