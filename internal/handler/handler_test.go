package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/menuchat/db"
	"github.com/xenking/menuchat/internal/assistant"
	"github.com/xenking/menuchat/internal/domain/cart"
	"github.com/xenking/menuchat/internal/domain/catalog"
	"github.com/xenking/menuchat/internal/search"
	"github.com/xenking/menuchat/internal/storage/menufile"
	"github.com/xenking/menuchat/pkg/httpmiddleware"
)

const helpReply = "I can help with menu suggestions, nutrition filters, and ordering. " +
	"Try: 'popular burgers', 'under 500 calories', or 'add Big Mac'."

type testServer struct {
	mux    *http.ServeMux
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cat, err := catalog.Load(context.Background(), menufile.NewBytes(db.Menu))
	require.NoError(t, err)

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	h, err := New(
		assistant.New(search.New(cat)),
		cat,
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, spans: spans, reader: reader}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

type chatLine struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

type chatResponse struct {
	Reply    string      `json:"reply"`
	Cart     []chatLine  `json:"cart"`
	Subtotal json.Number `json:"subtotal"`
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	d := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	d.UseNumber()
	var res chatResponse
	require.NoError(t, d.Decode(&res), w.Body.String())
	return res
}

func TestChat_AddItem(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"add 2 big mac"}],"cart":[]}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeChat(t, w)
	assert.Equal(t, "Added 2 × Big Mac to your order.", res.Reply)
	assert.Equal(t, []chatLine{{ID: "big-mac", Name: "Big Mac", Price: "5.99", Quantity: 2}}, res.Cart)
	assert.Equal(t, json.Number("11.98"), res.Subtotal)
}

func TestChat_LenientCart(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"messages": [{"role":"user","content":"remove fries"}],
		"cart": [
			{"id":"fries","name":"Fries","price":"2.89","quantity":2},
			"junk",
			{"id":"fries","name":"Fries","price":2.89,"quantity":1},
			{"id":"","name":"Ghost","price":1,"quantity":1},
			{"id":"coca-cola","name":"Coca-Cola","price":1.29,"quantity":1.5},
			{"id":"hash-browns","name":"Hash Browns","price":true,"quantity":1}
		]
	}`
	w := s.do(http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeChat(t, w)
	assert.Equal(t, "Removed 1 × Fries.", res.Reply)
	assert.Equal(t, []chatLine{
		{ID: "fries", Name: "Fries", Price: "2.89", Quantity: 2},
		{ID: "hash-browns", Name: "Hash Browns", Price: "0", Quantity: 1},
	}, res.Cart)
	assert.Equal(t, json.Number("5.78"), res.Subtotal)
}

func TestChat_CoercedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "messages not array", body: `{"messages":"add fries","cart":{}}`},
		{name: "non-object message", body: `{"messages":[42, null]}`},
		{name: "non-object last message", body: `{"messages":[{"role":"user","content":"add 2 big mac"},"oops"]}`},
		{name: "non-string content", body: `{"messages":[{"role":"user","content":{"text":"add fries"}}]}`},
		{name: "top-level array", body: `[{"role":"user","content":"add fries"}]`},
		{name: "unknown fields", body: `{"session":"x","messages":[{"role":"user","content":"hmm","ts":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(http.MethodPost, "/api/chat", tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			res := decodeChat(t, w)
			assert.Equal(t, helpReply, res.Reply)
			assert.Empty(t, res.Cart)
			assert.Equal(t, json.Number("0"), res.Subtotal)
		})
	}
}

func TestChat_LastTurnOnly(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat", `{"messages":[
		{"role":"user","content":"add fries"},
		{"role":"assistant","content":"Added 1 × Fries to your order."},
		{"role":"user","content":"show me popular burgers"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeChat(t, w)
	assert.True(t, strings.HasPrefix(res.Reply, "Here are some popular picks:"), res.Reply)
	assert.Empty(t, res.Cart)
}

func TestChat_InvalidJSON(t *testing.T) {
	for _, body := range []string{"", "{", `{"messages":[}`, "not json", "null"} {
		t.Run(body, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(http.MethodPost, "/api/chat", body)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"reply":"Error processing request.","cart":[]}`, w.Body.String())
		})
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestChat_Telemetry(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"add fries"}]}`)
	s.do(http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"add 2 fries"}]}`)
	s.do(http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"breakfast"}]}`)

	ended := s.spans.Ended()
	require.Len(t, ended, 3)
	for _, span := range ended {
		assert.Equal(t, "chat.respond", span.Name())
	}
	assert.Contains(t, ended[0].Attributes(), attribute.String("intent", "add"))
	assert.Contains(t, ended[2].Attributes(), attribute.String("intent", "breakfast"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, s.reader.Collect(context.Background(), &rm))
	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "menuchat.dispatch.count" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				intent, _ := dp.Attributes.Value("intent")
				counts[intent.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"add": 2, "breakfast": 1}, counts)
}

func TestMenu(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/menu", "")
	require.Equal(t, http.StatusOK, w.Code)

	d := json.NewDecoder(w.Body)
	d.UseNumber()
	var body struct {
		Categories []struct {
			Name  string `json:"name"`
			Items []struct {
				ID       string      `json:"id"`
				Name     string      `json:"name"`
				Price    json.Number `json:"price"`
				Calories int         `json:"calories"`
				Popular  bool        `json:"popular"`
				Tags     []string    `json:"tags"`
			} `json:"items"`
		} `json:"categories"`
	}
	require.NoError(t, d.Decode(&body))

	require.Len(t, body.Categories, 7)
	assert.Equal(t, "Burgers", body.Categories[0].Name)
	first := body.Categories[0].Items[0]
	assert.Equal(t, "big-mac", first.ID)
	assert.Equal(t, json.Number("5.99"), first.Price)
	assert.Equal(t, 590, first.Calories)
	assert.True(t, first.Popular)
	assert.NotEmpty(t, first.Tags)

	total := 0
	for _, c := range body.Categories {
		total += len(c.Items)
	}
	assert.Equal(t, 25, total)
}

func TestChat_QuantityForms(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		want     []chatLine
	}{
		{name: "integer", quantity: "2", want: []chatLine{{ID: "fries", Name: "Fries", Price: "2.89", Quantity: 2}}},
		{name: "integral fraction", quantity: "2.0", want: []chatLine{{ID: "fries", Name: "Fries", Price: "2.89", Quantity: 2}}},
		{name: "exponent", quantity: "1e1", want: []chatLine{{ID: "fries", Name: "Fries", Price: "2.89", Quantity: 10}}},
		{name: "fraction dropped", quantity: "1.5"},
		{name: "negative dropped", quantity: "-3"},
		{name: "huge clamped", quantity: "9223372036854775807", want: []chatLine{{ID: "fries", Name: "Fries", Price: "2.89", Quantity: cart.MaxQuantity}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(http.MethodPost, "/api/chat",
				`{"messages":[{"role":"user","content":"hello"}],"cart":[{"id":"fries","name":"Fries","price":2.89,"quantity":`+tt.quantity+`}]}`)
			require.Equal(t, http.StatusOK, w.Code)

			res := decodeChat(t, w)
			if tt.want == nil {
				assert.Empty(t, res.Cart)
				return
			}
			assert.Equal(t, tt.want, res.Cart)
		})
	}
}

func TestChat_HugeQuantityStaysBounded(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat", `{
		"messages":[{"role":"user","content":"add 2 big mac"}],
		"cart":[{"id":"big-mac","name":"Big Mac","price":5.99,"quantity":9223372036854775807}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeChat(t, w)
	assert.Equal(t, []chatLine{{ID: "big-mac", Name: "Big Mac", Price: "5.99", Quantity: cart.MaxQuantity}}, res.Cart)
	assert.Equal(t, json.Number("5984.01"), res.Subtotal)
}

type panickingResponder struct{}

func (panickingResponder) Respond(assistant.Request) assistant.Result {
	panic("rule table corrupted")
}

func TestChat_PanicGetsFallback(t *testing.T) {
	cat, err := catalog.New(nil)
	require.NoError(t, err)
	h, err := New(panickingResponder{}, cat, tracenoop.NewTracerProvider(), noop.NewMeterProvider())
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httpmiddleware.Wrap(mux, httpmiddleware.Recovery())

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"messages":[{"role":"user","content":"add fries"}]}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"reply":"Error processing request.","cart":[]}`, w.Body.String())
}

type abortingResponder struct{}

func (abortingResponder) Respond(assistant.Request) assistant.Result {
	panic(http.ErrAbortHandler)
}

func TestChat_AbortHandlerPropagates(t *testing.T) {
	cat, err := catalog.New(nil)
	require.NoError(t, err)
	h, err := New(abortingResponder{}, cat, tracenoop.NewTracerProvider(), noop.NewMeterProvider())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.Chat(httptest.NewRecorder(), req)
	})
}
