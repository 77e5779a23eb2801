package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Chat answers the last message of the transcript and returns the updated
// cart. A body that is not valid JSON, a null body, or a panic while
// answering gets the fallback reply with status 500.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "chat.respond", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	lg := zctx.From(ctx)

	writeFallback := func() {
		var e jx.Encoder
		encodeFallback(&e)
		writeJSON(w, http.StatusInternalServerError, &e)
	}
	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unprocessable request")
		lg.Warn("Cannot process chat request", zap.Error(err))
		writeFallback()
	}

	// A failure inside the assistant still gets the chat fallback body
	// rather than the generic error of the recovery middleware.
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		span.RecordError(errors.Errorf("panic: %v", rec))
		span.SetStatus(codes.Error, "panic")
		lg.Error("Panic in chat dispatch",
			zap.Any("panic", rec),
			zap.Stack("stack"),
		)
		writeFallback()
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(errors.Wrap(err, "read body"))
		return
	}
	req, err := decodeChatRequest(body)
	if err != nil {
		fail(err)
		return
	}

	res := h.responder.Respond(req)
	intent := attribute.String("intent", string(res.Intent))
	span.SetAttributes(intent)
	h.dispatches.Add(ctx, 1, metric.WithAttributes(intent))
	lg.Debug("Dispatched",
		zap.String("intent", string(res.Intent)),
		zap.Int("cart_lines", len(res.Cart)),
	)

	var e jx.Encoder
	encodeChatResponse(&e, res)
	writeJSON(w, http.StatusOK, &e)
}
