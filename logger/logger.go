// Package logger is the structured logging surface used across handlepay.
// Fields are passed as a map so call sites stay independent of the backend.
package logger

type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards everything. Used when no logger is configured.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// With returns a logger that adds fields to every entry.
func With(l Logger, fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &withFields{next: l, fields: fields}
}

type withFields struct {
	next   Logger
	fields map[string]any
}

func (w *withFields) merge(m map[string]any) map[string]any {
	out := make(map[string]any, len(w.fields)+len(m))
	for k, v := range w.fields {
		out[k] = v
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (w *withFields) Debug(msg string, m map[string]any) { w.next.Debug(msg, w.merge(m)) }
func (w *withFields) Info(msg string, m map[string]any)  { w.next.Info(msg, w.merge(m)) }
func (w *withFields) Warn(msg string, m map[string]any)  { w.next.Warn(msg, w.merge(m)) }
func (w *withFields) Error(msg string, m map[string]any) { w.next.Error(msg, w.merge(m)) }
