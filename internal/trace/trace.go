// Package trace exports pipeline events as OpenTelemetry spans.
package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Sink converts named pipeline events into spans. It satisfies the relay
// Tracer contract: Event never returns an error and is safe for concurrent
// use.
type Sink struct {
	tp     *sdktrace.TracerProvider
	tracer oteltrace.Tracer
	closer io.Closer // owned output file, nil for stderr
}

// Open builds a sink writing to path, or stderr when path is empty.
func Open(path string) (*Sink, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace output: %w", err)
		}
		w = f
		closer = f
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Sink{
		tp:     tp,
		tracer: tp.Tracer("askforge"),
		closer: closer,
	}, nil
}

// Event records one zero-duration span named after the pipeline event.
func (s *Sink) Event(name string, kv ...any) {
	_, span := s.tracer.Start(context.Background(), name)
	span.SetAttributes(attrs(kv)...)
	span.End()
}

// Close flushes buffered spans and releases the output file.
func (s *Sink) Close(ctx context.Context) error {
	err := s.tp.Shutdown(ctx)
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// attrs converts alternating key/value pairs into span attributes. Odd
// trailing values and non-string keys are dropped rather than reported;
// telemetry must never fail the pipeline.
func attrs(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, attr(key, kv[i+1]))
	}
	return out
}

func attr(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case time.Duration:
		return attribute.String(key, val.String())
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
