// Package report renders and delivers the scanner's alerts and daily
// summaries.
package report

import (
	"context"

	"github.com/rs/zerolog"
)

// Report is one rendered message, ready for delivery.
type Report struct {
	Subject      string
	HTML         string
	Text         string
	HighPriority bool
}

// Sender delivers rendered reports. Implementations must be safe for
// sequential reuse within a scan run.
type Sender interface {
	Send(ctx context.Context, r Report) error
}

// LogSender prints reports to the log instead of delivering them. Used
// for --dry-run and whenever SMTP is not configured.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender returns a sender that writes to the log.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "report").Logger()}
}

// Send logs the report's subject and plain-text body.
func (s *LogSender) Send(_ context.Context, r Report) error {
	s.log.Info().
		Str("subject", r.Subject).
		Bool("high_priority", r.HighPriority).
		Msg("report (not sent)")
	s.log.Info().Msg("\n" + r.Text)
	return nil
}
