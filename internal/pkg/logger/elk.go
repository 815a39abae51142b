// internal/pkg/logger/elk.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// ELKConfig holds the Elasticsearch shipper settings.
type ELKConfig struct {
	ElasticsearchURL string        `json:"elasticsearch_url"`
	IndexPattern     string        `json:"index_pattern"`
	BatchSize        int           `json:"batch_size"`
	FlushInterval    time.Duration `json:"flush_interval"`
	Username         string        `json:"username"`
	Password         string        `json:"password"`
}

func elkConfigFrom(options map[string]any) ELKConfig {
	var cfg ELKConfig
	if raw, err := json.Marshal(options); err == nil {
		_ = json.Unmarshal(raw, &cfg)
	}
	if cfg.IndexPattern == "" {
		cfg.IndexPattern = "pos-logs"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return cfg
}

// logDocument is the shape indexed into Elasticsearch. Daily indices,
// one document per record.
type logDocument struct {
	Timestamp   time.Time      `json:"@timestamp"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Service     string         `json:"service,omitempty"`
	Environment string         `json:"environment,omitempty"`
	Version     string         `json:"version,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	ClientIP    string         `json:"client_ip,omitempty"`
	Method      string         `json:"method,omitempty"`
	Path        string         `json:"path,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	DurationMS  float64        `json:"duration_ms,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ELKHandler buffers records and ships them to Elasticsearch with the
// bulk API. Shipping is best-effort: a failed flush is reported to
// stderr and the batch is dropped rather than blocking the caller.
type ELKHandler struct {
	cfg     ELKConfig
	process *Config
	client  *http.Client

	mu     sync.Mutex
	buffer []logDocument
}

func NewELKHandler(cfg ELKConfig, process *Config) *ELKHandler {
	h := &ELKHandler{
		cfg:     cfg,
		process: process,
		client:  &http.Client{Timeout: 10 * time.Second},
		buffer:  make([]logDocument, 0, cfg.BatchSize),
	}
	go h.flushLoop()
	return h
}

func (h *ELKHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *ELKHandler) Handle(ctx context.Context, record slog.Record) error {
	doc := h.document(ctx, record)

	h.mu.Lock()
	h.buffer = append(h.buffer, doc)
	full := len(h.buffer) >= h.cfg.BatchSize
	h.mu.Unlock()

	if full {
		go h.flush()
	}
	return nil
}

func (h *ELKHandler) document(ctx context.Context, record slog.Record) logDocument {
	doc := logDocument{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
		RequestID: contextString(ctx, ContextKeyRequestID),
		TraceID:   contextString(ctx, ContextKeyTraceID),
		ClientIP:  contextString(ctx, ContextKeyClientIP),
		Method:    contextString(ctx, ContextKeyMethod),
		Path:      contextString(ctx, ContextKeyPath),
		Fields:    make(map[string]any),
	}
	if h.process != nil {
		doc.Service = h.process.ServiceName
		doc.Environment = h.process.Environment
		doc.Version = h.process.ServiceVersion
	}
	if code, ok := ctx.Value(ContextKeyStatusCode).(int); ok {
		doc.StatusCode = code
	}
	if d, ok := ctx.Value(ContextKeyDuration).(time.Duration); ok {
		doc.DurationMS = float64(d.Milliseconds())
	}

	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "error" || a.Key == "err" {
			if err, ok := a.Value.Any().(error); ok {
				doc.Error = err.Error()
				return true
			}
		}
		doc.Fields[a.Key] = a.Value.Any()
		return true
	})
	return doc
}

func (h *ELKHandler) flushLoop() {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()
	for range ticker.C {
		h.flush()
	}
}

func (h *ELKHandler) flush() {
	h.mu.Lock()
	if len(h.buffer) == 0 {
		h.mu.Unlock()
		return
	}
	batch := h.buffer
	h.buffer = make([]logDocument, 0, h.cfg.BatchSize)
	h.mu.Unlock()

	if err := h.ship(batch); err != nil {
		fmt.Fprintf(os.Stderr, "elk shipper: %v\n", err)
	}
}

func (h *ELKHandler) ship(batch []logDocument) error {
	index := fmt.Sprintf("%s-%s", h.cfg.IndexPattern, time.Now().Format("2006.01.02"))

	var body bytes.Buffer
	for _, doc := range batch {
		meta, _ := json.Marshal(map[string]any{"index": map[string]string{"_index": index}})
		body.Write(meta)
		body.WriteByte('\n')
		payload, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		body.Write(payload)
		body.WriteByte('\n')
	}

	req, err := http.NewRequest(http.MethodPost, h.cfg.ElasticsearchURL+"/_bulk", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if h.cfg.Username != "" {
		req.SetBasicAuth(h.cfg.Username, h.cfg.Password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bulk index returned %d", resp.StatusCode)
	}
	return nil
}

func (h *ELKHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *ELKHandler) WithGroup(_ string) slog.Handler      { return h }

func contextString(ctx context.Context, key ContextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
