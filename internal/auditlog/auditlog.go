// Package auditlog records the durable, append-only trail of everything
// a migration run did or decided. The host's own logging is too coarse
// for the manual follow-up this migration needs, so every run writes
// numbered entries to the migration_logs table and mirrors them to zap.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/models"
	"github.com/swisscast/kaltura-migration/internal/store"
)

// Logger accumulates audit entries for one execution. Not safe for
// concurrent use; the engine runs one migration task at a time.
type Logger struct {
	logs  *store.LogStore
	log   *zap.SugaredLogger
	clock func() int64

	execution int64
	testing   bool
	entry     int64
	errors    []string
}

func New(logs *store.LogStore) *Logger {
	return &Logger{
		logs:  logs,
		log:   zap.S().Named("audit"),
		clock: func() int64 { return time.Now().Unix() },
	}
}

// Start opens a new execution: the id is max(existing)+1, so executions
// are strictly monotonic across runs. Testing marks a dry run.
func (l *Logger) Start(ctx context.Context, testing bool) error {
	max, err := l.logs.MaxExecution(ctx)
	if err != nil {
		return fmt.Errorf("reading last execution id: %w", err)
	}
	l.execution = max + 1
	l.testing = testing
	l.entry = 0
	l.errors = nil
	return nil
}

// Execution returns the id of the currently open execution.
func (l *Logger) Execution() int64 {
	return l.execution
}

// NextEntry advances the per-item ordinal. Called once per finding or
// module being processed.
func (l *Logger) NextEntry() {
	l.entry++
}

// Errors returns the error messages accumulated since Start.
func (l *Logger) Errors() []string {
	return l.errors
}

func (l *Logger) write(ctx context.Context, level int, message, code, id1, id2 string) {
	err := l.logs.Append(ctx, models.LogEntry{
		Execution: l.execution,
		Testing:   l.testing,
		Level:     level,
		Time:      l.clock(),
		Entry:     l.entry,
		Message:   message,
		Code:      code,
		ID1:       id1,
		ID2:       id2,
	})
	if err != nil {
		// The audit trail must not take the migration down with it.
		l.log.Errorw("failed to append audit entry", "error", err, "message", message)
	}
}

func (l *Logger) Info(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log.Infow(msg, "execution", l.execution, "entry", l.entry)
	l.write(ctx, models.LevelInfo, msg, "", "", "")
}

func (l *Logger) Warning(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log.Warnw(msg, "execution", l.execution, "entry", l.entry)
	l.write(ctx, models.LevelWarning, msg, "", "", "")
}

func (l *Logger) Error(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.log.Errorw(msg, "execution", l.execution, "entry", l.entry)
	l.errors = append(l.errors, msg)
	l.write(ctx, models.LevelError, msg, "", "", "")
}

// Op records an operation performed against the remote platform. During
// a dry run the message states what would happen instead.
func (l *Logger) Op(ctx context.Context, code, id1, id2 string) {
	infix := ""
	if l.testing {
		infix = "will be "
	}
	var msg string
	switch code {
	case models.OpCreateCategory:
		msg = fmt.Sprintf("Category %s %screated with name %s", id1, infix, id2)
	case models.OpRenameCategory:
		msg = fmt.Sprintf("Category %s %srenamed to %s", id1, infix, id2)
	case models.OpMoveCategory:
		msg = fmt.Sprintf("Category %s %smoved to %s", id1, infix, id2)
	case models.OpCopyCategory:
		msg = fmt.Sprintf("Category %s %scopied to name %s with all its entries", id1, infix, id2)
	case models.OpDeleteCategory:
		msg = fmt.Sprintf("Category %s %sdeleted", id1, infix)
	case models.OpAddMediaToCategory:
		msg = fmt.Sprintf("Media %s %sadded to category %s", id1, infix, id2)
	default:
		msg = fmt.Sprintf("Operation %s on %s %s", code, id1, id2)
	}
	l.log.Infow(msg, "execution", l.execution, "entry", l.entry, "code", code)
	l.write(ctx, models.LevelOperation, msg, code, id1, id2)
}
