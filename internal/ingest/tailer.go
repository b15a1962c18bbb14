package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog"
)

// LogLine represents a raw line from a log source
type LogLine struct {
	Source    string
	Number    int       // 1-based position since the tailer started
	Timestamp time.Time // wall clock arrival
	Content   string
}

// Ingester defines the interface for log sources
type Ingester interface {
	Start() (<-chan LogLine, error)
	Stop() error
}

// FileTailer implements Ingester for a single file
type FileTailer struct {
	path      string
	follow    bool
	fromStart bool
	logger    zerolog.Logger
	t         *tail.Tail
}

// NewFileTailer creates a tailer for path. With follow set it keeps
// waiting for new lines across rotations; fromStart reads existing
// content first instead of only new lines.
func NewFileTailer(path string, follow, fromStart bool, logger zerolog.Logger) *FileTailer {
	return &FileTailer{
		path:      path,
		follow:    follow,
		fromStart: fromStart,
		logger:    logger.With().Str("component", "ingest").Str("path", path).Logger(),
	}
}

// Start begins tailing the file and returns a channel of lines
func (f *FileTailer) Start() (<-chan LogLine, error) {
	config := tail.Config{
		Follow:    f.follow,
		ReOpen:    f.follow,
		MustExist: !f.follow,
		Poll:      f.follow, // Fallback for some filesystems/docker mounts
		Logger:    tail.DiscardingLogger,
	}
	if !f.fromStart {
		config.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	f.logger.Info().Bool("follow", f.follow).Msg("starting tailer (waiting if not present)")

	t, err := tail.TailFile(f.path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to tail file %s: %w", f.path, err)
	}
	f.t = t

	out := make(chan LogLine)

	go func() {
		defer close(out)
		n := 0
		for line := range t.Lines {
			if line.Err != nil {
				// We don't log every error to avoid spamming if a file is rotated
				continue
			}
			n++
			out <- LogLine{
				Source:    f.path,
				Number:    n,
				Timestamp: line.Time,
				Content:   line.Text,
			}
		}
	}()

	return out, nil
}

// Stop stops the tailing
func (f *FileTailer) Stop() error {
	if f.t != nil {
		return f.t.Stop()
	}
	return nil
}
