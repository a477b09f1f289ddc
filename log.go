package fractalx

import (
	"context"
	"log/slog"
	"sync"
)

// DiagnosticHook receives every warning and error as it is recorded.
type DiagnosticHook func(level slog.Level, d Diagnostic)

// diagnostics is the single warning/error sink shared by every context of a tree.
// It never panics and never returns an error to its caller.
type diagnostics struct {
	mu     sync.Mutex
	warns  []Diagnostic
	errs   []Diagnostic
	logger *slog.Logger
	hook   DiagnosticHook
}

func newDiagnostics(logger *slog.Logger) *diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &diagnostics{logger: logger}
}

func (l *diagnostics) record(level slog.Level, kind error, source, message string) *Diagnostic {
	d := Diagnostic{Source: source, Message: message, Kind: kind}

	l.mu.Lock()
	if level >= slog.LevelError {
		l.errs = append(l.errs, d)
	} else {
		l.warns = append(l.warns, d)
	}
	hook := l.hook
	logger := l.logger
	l.mu.Unlock()

	logger.Log(context.Background(), level, message, "source", source)
	if hook != nil {
		hook(level, d)
	}
	return &d
}

func (l *diagnostics) warnings() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.warns...)
}

func (l *diagnostics) errors() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.errs...)
}

func (l *diagnostics) setHook(hook DiagnosticHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = hook
}
