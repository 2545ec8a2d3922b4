// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ids are the identifiers a log line inherits from its context: the HTTP
// request that asked for a call action and the call session it produced.
type ids struct {
	requestID string
	sessionID string
}

type idsKey struct{}

func idsFrom(ctx context.Context) ids {
	if ctx == nil {
		return ids{}
	}
	v, _ := ctx.Value(idsKey{}).(ids)
	return v
}

func withIDs(ctx context.Context, fn func(*ids)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	v := idsFrom(ctx)
	fn(&v)
	return context.WithValue(ctx, idsKey{}, v)
}

// ContextWithRequestID tags ctx with the ID of the HTTP request being served.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withIDs(ctx, func(v *ids) { v.requestID = id })
}

// ContextWithSessionID tags ctx with the call session a client attempt opened.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withIDs(ctx, func(v *ids) { v.sessionID = id })
}

func RequestIDFromContext(ctx context.Context) string { return idsFrom(ctx).requestID }

func SessionIDFromContext(ctx context.Context) string { return idsFrom(ctx).sessionID }

// CarryIDs copies the request and session IDs of from onto to. Work detached
// from a request (a client call running after the 202 went out) uses it to
// keep logging under the request that started it.
func CarryIDs(to, from context.Context) context.Context {
	v := idsFrom(from)
	if v == (ids{}) {
		return to
	}
	return withIDs(to, func(dst *ids) { *dst = v })
}

// WithContext adds the context's request, session and trace IDs to logger.
// The logger is returned unchanged when ctx carries none of them.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	v := idsFrom(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if v == (ids{}) && !sc.HasTraceID() {
		return logger
	}

	b := logger.With()
	if v.requestID != "" {
		b = b.Str(FieldRequestID, v.requestID)
	}
	if v.sessionID != "" {
		b = b.Str(FieldSessionID, v.sessionID)
	}
	if sc.HasTraceID() {
		b = b.Str(FieldTraceID, sc.TraceID().String())
	}
	return b.Logger()
}

// WithComponentFromContext is WithContext over WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
