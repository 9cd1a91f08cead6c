package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output feeds log aggregation in
// production; any other LOG_FORMAT falls back to the text handler. Every
// record carries the service attribute so consolidation lines are filterable
// next to the ledger feed's own logs.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "consol"))
}
