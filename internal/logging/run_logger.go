package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunLogger tags every line of one generation or batch run with its id and
// elapsed time. When a directory is given it also keeps a plain-text copy of
// the run on disk.
type RunLogger struct {
	runID     string
	kind      string
	logger    zerolog.Logger
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

// StartRun opens a run logger; dir may be empty to skip the file copy
func StartRun(kind, runID, dir string) (*RunLogger, error) {
	r := &RunLogger{
		runID:     runID,
		kind:      kind,
		logger:    log.With().Str("run_kind", kind).Str("run_id", runID).Logger(),
		startTime: time.Now(),
	}
	if dir == "" {
		return r, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.log", kind, runID, r.startTime.Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	r.logFile = f
	fmt.Fprintf(f, "CHATLINGS %s LOG\nRun ID: %s\nStart Time: %s\n\n", strings.ToUpper(kind), runID, r.startTime.Format("2006-01-02 15:04:05"))
	return r, nil
}

// RunID returns the id this logger was started with
func (r *RunLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Log writes an info line
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}
	r.write(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

// LogError writes an error line with context
func (r *RunLogger) LogError(context string, err error) {
	if r == nil || err == nil {
		return
	}
	r.write(zerolog.ErrorLevel, fmt.Sprintf("ERROR in %s: %v", context, err))
}

// LogRequest records the size of an outgoing provider prompt
func (r *RunLogger) LogRequest(pass, model string, promptChars int) {
	if r == nil {
		return
	}
	r.write(zerolog.DebugLevel, fmt.Sprintf("provider request pass=%s model=%s prompt_chars=%d", pass, model, promptChars))
}

// LogResponse records the size and usage of a provider response
func (r *RunLogger) LogResponse(pass string, responseChars, inputTokens, outputTokens int) {
	if r == nil {
		return
	}
	r.write(zerolog.DebugLevel, fmt.Sprintf("provider response pass=%s response_chars=%d input_tokens=%d output_tokens=%d", pass, responseChars, inputTokens, outputTokens))
}

// Elapsed is the time since the run started
func (r *RunLogger) Elapsed() time.Duration {
	if r == nil {
		return 0
	}
	return time.Since(r.startTime)
}

// Close writes the completion line and closes the file copy, if any
func (r *RunLogger) Close() {
	if r == nil {
		return
	}
	r.write(zerolog.InfoLevel, fmt.Sprintf("%s run completed", r.kind))

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
}

func (r *RunLogger) write(level zerolog.Level, msg string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	r.logger.WithLevel(level).Dur("elapsed", elapsed).Msg(msg)

	if r.logFile != nil {
		fmt.Fprintf(r.logFile, "[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), elapsed, msg)
		r.logFile.Sync()
	}
}
