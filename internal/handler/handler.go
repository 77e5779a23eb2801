// Package handler implements the HTTP endpoints of the chat ordering
// assistant.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/menuchat/internal/assistant"
	"github.com/xenking/menuchat/internal/domain/catalog"
)

const instrumentationName = "github.com/xenking/menuchat/internal/handler"

// maxBodyBytes bounds the size of a chat request body.
const maxBodyBytes = 1 << 20

const fallbackReply = "Error processing request."

// Responder produces a reply and an updated cart for a chat request.
type Responder interface {
	Respond(req assistant.Request) assistant.Result
}

// Menu exposes the categories served by GET /api/menu.
type Menu interface {
	Categories() []catalog.Category
}

var (
	_ Responder = (*assistant.Assistant)(nil)
	_ Menu      = (*catalog.Catalog)(nil)
)

// Handler serves /api/chat and /api/menu.
type Handler struct {
	responder Responder
	menu      Menu

	tracer     trace.Tracer
	dispatches metric.Int64Counter
}

// New constructs a Handler.
func New(
	responder Responder,
	menu Menu,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Handler, error) {
	dispatches, err := mp.Meter(instrumentationName).Int64Counter("menuchat.dispatch.count",
		metric.WithDescription("Chat messages dispatched, by intent."),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create dispatch counter")
	}
	return &Handler{
		responder:  responder,
		menu:       menu,
		tracer:     tp.Tracer(instrumentationName),
		dispatches: dispatches,
	}, nil
}

// Register adds the handler routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/menu", h.Menu)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
