// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package androidlog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Handler is a slog.Handler that writes each record to a Sink as one
// logcat line: the message followed by key=value attributes. Groups
// are flattened into dotted keys. Time and level are carried by logd
// itself and are not repeated in the text.
type Handler struct {
	sink   *Sink
	tag    string
	level  slog.Leveler
	prefix string
	group  string
}

// NewHandler returns a handler writing to sink under tag. Records
// below level are dropped; a nil level means slog.LevelInfo.
func NewHandler(sink *Sink, tag string, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{sink: sink, tag: tag, level: level}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	var builder strings.Builder
	builder.WriteString(record.Message)
	builder.WriteString(h.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&builder, h.group, attr)
		return true
	})
	return h.sink.Write(PriorityForLevel(record.Level), h.tag, builder.String())
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var builder strings.Builder
	builder.WriteString(h.prefix)
	for _, attr := range attrs {
		appendAttr(&builder, h.group, attr)
	}
	clone := *h
	clone.prefix = builder.String()
	return &clone
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

// PriorityForLevel maps a slog level to the nearest Android priority.
func PriorityForLevel(level slog.Level) Priority {
	switch {
	case level >= slog.LevelError:
		return Error
	case level >= slog.LevelWarn:
		return Warn
	case level >= slog.LevelInfo:
		return Info
	case level >= slog.LevelDebug:
		return Debug
	default:
		return Verbose
	}
}

func appendAttr(builder *strings.Builder, group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		nested := group
		if attr.Key != "" {
			nested = joinKey(group, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			appendAttr(builder, nested, member)
		}
		return
	}
	builder.WriteByte(' ')
	builder.WriteString(joinKey(group, attr.Key))
	builder.WriteByte('=')
	builder.WriteString(formatValue(attr.Value))
}

func formatValue(value slog.Value) string {
	if value.Kind() == slog.KindTime {
		return value.Time().Format(time.RFC3339Nano)
	}
	text := value.String()
	if text == "" || strings.ContainsAny(text, " \t\n\"=") {
		return strconv.Quote(text)
	}
	return text
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}
