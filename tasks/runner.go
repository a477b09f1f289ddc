package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/fractalx"
)

// LogData is the data of a log task. Info is recorded; Then, when it
// addresses an input, is dispatched right after with Payload.
type LogData struct {
	Info    any
	Then    fractalx.EventData
	Payload any
}

// Log is a thread-safe record of the infos seen by LogTask.
type Log struct {
	mu      sync.Mutex
	entries []any
}

// Entries returns the recorded infos, oldest first.
func (l *Log) Entries() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]any(nil), l.entries...)
}

// Last returns the most recent info, or nil.
func (l *Log) Last() any {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

func (l *Log) add(v any) {
	l.mu.Lock()
	l.entries = append(l.entries, v)
	l.mu.Unlock()
}

// LogTask records LogData.Info in log and then dispatches LogData.Then.
func LogTask(log *Log) fractalx.TaskFactory {
	return func(api fractalx.API) fractalx.TaskRunner {
		return func(data any) {
			d, ok := data.(LogData)
			if !ok {
				api.Error("log", fmt.Sprintf("unexpected task data %T", data))
				return
			}
			log.add(d.Info)
			if d.Then.Input != "" {
				api.Dispatch(d.Then.Resolve(d.Payload))
			}
		}
	}
}

// DelayData is the data of a delay task.
type DelayData struct {
	After   time.Duration
	Then    fractalx.EventData
	Payload any
}

// Delay dispatches DelayData.Then once DelayData.After has elapsed.
// The runner returns at once; the dispatch happens on a timer goroutine.
func Delay() fractalx.TaskFactory {
	return func(api fractalx.API) fractalx.TaskRunner {
		return func(data any) {
			d, ok := data.(DelayData)
			if !ok {
				api.Error("delay", fmt.Sprintf("unexpected task data %T", data))
				return
			}
			time.AfterFunc(d.After, func() {
				api.Dispatch(d.Then.Resolve(d.Payload))
			})
		}
	}
}

// Func adapts a plain function to a TaskFactory.
func Func(fn func(api fractalx.API, data any)) fractalx.TaskFactory {
	return func(api fractalx.API) fractalx.TaskRunner {
		return func(data any) { fn(api, data) }
	}
}

// Logging wraps a factory and logs every run of its runner with its duration.
func Logging(name string, inner fractalx.TaskFactory, logger *slog.Logger) fractalx.TaskFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(api fractalx.API) fractalx.TaskRunner {
		run := inner(api)
		return func(data any) {
			logger.Debug("task started", "task", name)
			start := time.Now()
			run(data)
			logger.Info("task completed", "task", name, "duration", time.Since(start))
		}
	}
}
