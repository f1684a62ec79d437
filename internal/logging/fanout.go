package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// fanout sends each record to every enabled handler after masking customer
// contact details.
type fanout struct {
	handlers []slog.Handler
}

func newFanout(handlers ...slog.Handler) *fanout {
	f := &fanout{}
	for _, handler := range handlers {
		if handler != nil {
			f.handlers = append(f.handlers, handler)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(redact(attr))
		return true
	})

	var errs error
	for _, handler := range f.handlers {
		if handler.Enabled(ctx, record.Level) {
			errs = errors.Join(errs, handler.Handle(ctx, masked.Clone()))
		}
	}
	return errs
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = redact(attr)
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(masked) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) each(fn func(slog.Handler) slog.Handler) *fanout {
	next := &fanout{handlers: make([]slog.Handler, len(f.handlers))}
	for i, handler := range f.handlers {
		next.handlers[i] = fn(handler)
	}
	return next
}

// redact masks attributes whose key names an email address or phone number.
func redact(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		masked := make([]any, len(group))
		for i, member := range group {
			masked[i] = redact(member)
		}
		return slog.Group(attr.Key, masked...)
	}

	key := strings.ToLower(attr.Key)
	switch {
	case strings.HasSuffix(key, "email"):
		return slog.String(attr.Key, MaskEmail(attr.Value.String()))
	case strings.HasSuffix(key, "phone"):
		return slog.String(attr.Key, MaskPhone(attr.Value.String()))
	default:
		return attr
	}
}

// MaskEmail keeps the first character of the local part and the domain:
// "ada@example.com" becomes "a***@example.com".
func MaskEmail(value string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(value), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

// MaskPhone keeps the last four digits.
func MaskPhone(value string) string {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}
	if len(digits) <= 4 {
		return "***"
	}
	return "***" + string(digits[len(digits)-4:])
}
