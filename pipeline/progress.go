package pipeline

import "log/slog"

// ProgressSink receives coarse progress checkpoints from running stages.
// Implementations must be safe for concurrent use; stage loops call Report
// inline, so it should return quickly.
type ProgressSink interface {
	// Report records that current of total units of the named stage are done.
	Report(stage string, current, total int)
}

// NewLogSink returns a ProgressSink that logs checkpoints at debug level.
// A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) ProgressSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &logSink{logger: logger}
}

type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Report(stage string, current, total int) {
	s.logger.Debug("stage progress", "stage", stage, "current", current, "total", total)
}
