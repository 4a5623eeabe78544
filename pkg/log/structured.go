package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger wraps a named zap logger and hands out operation tracers
// which log steps with a consistent set of fields.
type StructuredLogger struct {
	logger *zap.SugaredLogger
	fields []interface{}
}

// NewDebugLogger returns a logger whose step entries are emitted at debug level.
func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{logger: zap.S().Named(name)}
}

// WithContext returns a copy of the logger carrying the request id found in ctx.
func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	fields := append([]interface{}{}, l.fields...)
	if id := requestid.FromContext(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	return &StructuredLogger{logger: l.logger, fields: fields}
}

func (l *StructuredLogger) Operation(name string) *OperationBuilder {
	return &OperationBuilder{
		logger: l.logger,
		name:   name,
		fields: append([]interface{}{}, l.fields...),
	}
}

type OperationBuilder struct {
	logger *zap.SugaredLogger
	name   string
	fields []interface{}
}

func (b *OperationBuilder) WithUUID(key string, id uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, key, id.String())
	return b
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, key, value)
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	t := &OperationTracer{
		logger: b.logger,
		name:   b.name,
		fields: b.fields,
		start:  time.Now(),
	}
	t.logger.Debugw("operation started", t.base()...)
	return t
}

// OperationTracer logs the lifecycle of a single operation.
type OperationTracer struct {
	logger *zap.SugaredLogger
	name   string
	fields []interface{}
	start  time.Time
}

func (t *OperationTracer) base() []interface{} {
	return append([]interface{}{"operation", t.name}, t.fields...)
}

func (t *OperationTracer) Step(step string) *Entry {
	return &Entry{tracer: t, msg: "operation step", fields: []interface{}{"step", step}, level: zap.DebugLevel}
}

func (t *OperationTracer) Success() *Entry {
	return &Entry{
		tracer: t,
		msg:    "operation succeeded",
		fields: []interface{}{"duration_ms", time.Since(t.start).Milliseconds()},
		level:  zap.DebugLevel,
	}
}

func (t *OperationTracer) Error(err error) *Entry {
	return &Entry{
		tracer: t,
		msg:    "operation failed",
		fields: []interface{}{"error", err, "duration_ms", time.Since(t.start).Milliseconds()},
		level:  zap.ErrorLevel,
	}
}

// Entry is a pending log line. Nothing is written until Log is called.
type Entry struct {
	tracer *OperationTracer
	msg    string
	fields []interface{}
	level  zapcore.Level
}

func (e *Entry) WithUUID(key string, id uuid.UUID) *Entry {
	e.fields = append(e.fields, key, id.String())
	return e
}

func (e *Entry) WithUUIDPtr(key string, id *uuid.UUID) *Entry {
	if id == nil {
		e.fields = append(e.fields, key, nil)
		return e
	}
	return e.WithUUID(key, *id)
}

func (e *Entry) WithString(key, value string) *Entry {
	e.fields = append(e.fields, key, value)
	return e
}

func (e *Entry) WithInt(key string, value int) *Entry {
	e.fields = append(e.fields, key, value)
	return e
}

func (e *Entry) WithBool(key string, value bool) *Entry {
	e.fields = append(e.fields, key, value)
	return e
}

func (e *Entry) Log() {
	kv := append(e.tracer.base(), e.fields...)
	if e.level >= zapcore.ErrorLevel {
		e.tracer.logger.Errorw(e.msg, kv...)
		return
	}
	e.tracer.logger.Debugw(e.msg, kv...)
}
