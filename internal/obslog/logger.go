// Package obslog provides the buffered, structured logging sink used by
// the Engine and its collaborators. It wraps go.uber.org/zap for
// synchronous, field-based logging and layers a batching flush loop on top
// for the destinations named in the external configuration contract:
// local file, console, or an object store.
package obslog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abdoElHodaky/oms-core/pkg/config"
)

// Event is one structured log record queued for batched delivery to the
// configured sink. Engine code calls Logger.Debug/Info/Warn/Error, which
// build and queue these; it never writes to the sink directly.
type Event struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// ObjectPutter is the external collaborator boundary for the ObjectStore
// destination. The core never implements this against a real cloud SDK —
// the persistent logger sink is explicitly out of scope; only this
// interface matters.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// Sink receives a flushed batch of events and a k-sortable batch id.
type Sink interface {
	WriteBatch(batchID string, events []Event) error
}

// Logger is the structured + buffered logging façade used throughout the
// OMS core. Immediate calls (Debug/Info/Warn/Error) go straight to the
// wrapped zap.Logger for operator visibility; the same events are also
// queued for batched delivery to the configured Sink.
type Logger struct {
	zl *zap.Logger

	mu            sync.Mutex
	buffer        []Event
	batchSize     int
	flushInterval time.Duration
	sink          Sink
	pool          *ants.Pool

	startOnce sync.Once
	started   bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewLogger builds a Logger from a LoggingConfig, constructing the sink
// implied by cfg.Destination.
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	zl, err := buildZapLogger(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("obslog: build zap logger: %w", err)
	}

	var sink Sink
	switch cfg.Destination {
	case config.LoggingDestinationLocalFile:
		sink, err = newFileSink(cfg.LocalFilePath)
		if err != nil {
			return nil, err
		}
	case config.LoggingDestinationObjectStore:
		sink = &noopObjectStoreSink{bucket: cfg.ObjectStoreBucket, prefix: cfg.ObjectStorePrefix}
	default:
		sink = consoleSink{}
	}

	pool, err := ants.NewPool(4)
	if err != nil {
		return nil, fmt.Errorf("obslog: build flush worker pool: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := time.Duration(cfg.FlushIntervalSeconds) * time.Second
	if flushInterval <= 0 {
		flushInterval = 60 * time.Second
	}

	return &Logger{
		zl:            zl,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		sink:          sink,
		pool:          pool,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

func buildZapLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// Start launches the flush-interval loop. Matches the Engine's own
// start/stop idempotence convention: calling Start twice is a no-op.
func (l *Logger) Start() {
	l.startOnce.Do(func() {
		l.mu.Lock()
		l.started = true
		l.mu.Unlock()
		go l.flushLoop()
	})
}

// Stop halts the flush loop and drains any remaining buffered events.
// Safe to call on a logger that was never started.
func (l *Logger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.mu.Lock()
		started := l.started
		l.mu.Unlock()
		if started {
			<-l.doneCh
		}
		l.flush()
		l.pool.Release()
		_ = l.zl.Sync()
	})
}

func (l *Logger) flushLoop() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.flush()
		}
	}
}

func (l *Logger) flush() {
	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	batchID := ksuid.New().String()
	_ = l.pool.Submit(func() {
		if err := l.sink.WriteBatch(batchID, batch); err != nil {
			l.zl.Error("log batch flush failed", zap.String("batch_id", batchID), zap.Error(err))
		}
	})
}

func (l *Logger) enqueue(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	l.buffer = append(l.buffer, Event{Time: time.Now(), Level: level, Message: msg, Fields: fields})
	shouldFlush := len(l.buffer) >= l.batchSize
	l.mu.Unlock()

	if shouldFlush {
		l.flush()
	}
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.zl.Debug(msg, toZapFields(fields)...)
	l.enqueue("debug", msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.zl.Info(msg, toZapFields(fields)...)
	l.enqueue("info", msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.zl.Warn(msg, toZapFields(fields)...)
	l.enqueue("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.zl.Error(msg, toZapFields(fields)...)
	l.enqueue("error", msg, fields)
}

// Zap exposes the underlying *zap.Logger for callers that want
// zap.Field-based calls directly (e.g. hot paths already building fields).
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// --- sinks ---

type consoleSink struct{}

func (consoleSink) WriteBatch(batchID string, events []Event) error {
	enc := json.NewEncoder(os.Stdout)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

type fileSink struct {
	mu   sync.Mutex
	file *os.File
}

func newFileSink(path string) (*fileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("obslog: open log file %q: %w", path, err)
	}
	return &fileSink{file: f}, nil
}

func (s *fileSink) WriteBatch(batchID string, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.file)
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return w.Flush()
}

// noopObjectStoreSink is the ObjectStore destination's reference
// implementation. It deliberately does not depend on any cloud SDK (the
// persistent logger sink is an external collaborator per the core's scope
// boundary) and instead exists to document the shape a real ObjectPutter
// would need.
type noopObjectStoreSink struct {
	bucket string
	prefix string
	putter ObjectPutter
}

func (s *noopObjectStoreSink) WriteBatch(batchID string, events []Event) error {
	if s.putter == nil {
		return nil
	}
	body, err := json.Marshal(events)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%s.json", s.prefix, batchID)
	return s.putter.Put(context.Background(), s.bucket, key, body)
}
