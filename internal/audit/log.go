package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adityaahir3105/FinDocs/internal/obs"
)

// LogEvent writes an audit entry enriched with the request and user identifiers in ctx.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	obs.WithContext(ctx).Info("audit",
		zap.String("type", "audit"),
		zap.String("event", event),
		zap.String("at", time.Now().UTC().Format(time.RFC3339Nano)),
		zap.Any("fields", copyFields),
	)
	return nil
}

// Warn writes an audit entry at warn level. Used for security-relevant rejections.
func Warn(ctx context.Context, event string, fields map[string]any) {
	obs.WithContext(ctx).Warn("audit",
		zap.String("type", "audit"),
		zap.String("event", event),
		zap.String("at", time.Now().UTC().Format(time.RFC3339Nano)),
		zap.Any("fields", fields),
	)
}
