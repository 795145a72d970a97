package transport

import (
	"melspec/internal/log"
)

// LoggingTransport implements the Transport interface by logging a summary
// of every message at debug level.
type LoggingTransport struct {
	logger *log.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{logger: log.Named("transport")}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	switch m := data.(type) {
	case FrameMessage:
		lt.logger.Debugf("frame %d at %.2fs: %dx%d, peak band %d, mean %.1f dB",
			m.Index, m.OffsetSeconds, m.NMels, m.Columns, m.Stats.PeakBand, m.Stats.Mean)
	default:
		lt.logger.Debugf("message %T", data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
