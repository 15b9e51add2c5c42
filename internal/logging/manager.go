package logging

import (
	"container/ring"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// MaxBufferSize is the maximum number of log entries kept in memory
	MaxBufferSize = 10000

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogEntry represents a single log entry
type LogEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Manager handles log collection, buffering, and persistence
type Manager struct {
	mu     sync.RWMutex
	buffer *ring.Ring
	db     *sql.DB
}

// NewManager creates a new logging manager. db may be nil; entries then
// live only in the ring buffer.
func NewManager(db *sql.DB) *Manager {
	m := &Manager{
		buffer: ring.New(MaxBufferSize),
		db:     db,
	}

	if err := m.initSchema(); err != nil {
		log.Printf("Warning: Failed to initialize logging schema: %v", err)
	}

	return m
}

// rebindQuery converts ? placeholders to $N for PostgreSQL.
func rebindQuery(query string) string {
	n := 1
	var out strings.Builder
	for _, ch := range query {
		if ch == '?' {
			fmt.Fprintf(&out, "$%d", n)
			n++
		} else {
			out.WriteRune(ch)
		}
	}
	return out.String()
}

func (m *Manager) initSchema() error {
	if m.db == nil {
		return nil
	}

	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS logs (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			level TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata_json TEXT,
			user_id TEXT,
			body_area TEXT,
			job_type TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level)",
		"CREATE INDEX IF NOT EXISTS idx_logs_user_id ON logs(user_id)",
	}

	for _, indexSQL := range indexes {
		if _, err := m.db.Exec(indexSQL); err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}

	return nil
}

// Log adds a log entry to the buffer and persists it asynchronously
func (m *Manager) Log(level, source, message string, metadata map[string]interface{}) {
	entry := LogEntry{
		ID:        fmt.Sprintf("log-%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.buffer.Value = entry
	m.buffer = m.buffer.Next()
	m.mu.Unlock()

	go m.persistLog(entry)
}

func (m *Manager) persistLog(entry LogEntry) {
	if m.db == nil {
		return
	}

	var metadataJSON *string
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err == nil {
			jsonStr := string(data)
			metadataJSON = &jsonStr
		}
	}

	var userID, bodyArea, jobType *string
	if entry.Metadata != nil {
		if val, ok := entry.Metadata["user_id"].(string); ok && val != "" {
			userID = &val
		}
		if val, ok := entry.Metadata["body_area"].(string); ok && val != "" {
			bodyArea = &val
		}
		if val, ok := entry.Metadata["job_type"].(string); ok && val != "" {
			jobType = &val
		}
	}

	_, err := m.db.Exec(rebindQuery(`
		INSERT INTO logs (id, timestamp, level, source, message, metadata_json, user_id, body_area, job_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.Timestamp, entry.Level, entry.Source, entry.Message, metadataJSON, userID, bodyArea, jobType)

	if err != nil {
		// Straight to stderr: going through the log package would loop back
		// into this manager once the interceptor is installed.
		fmt.Fprintf(os.Stderr, "Failed to persist log entry: %v\n", err)
	}
}

// GetRecent returns the most recent log entries from the buffer
func (m *Manager) GetRecent(limit int, levelFilter, sourceFilter string) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > MaxBufferSize {
		limit = 100
	}

	logs := make([]LogEntry, 0, limit)
	count := 0

	m.buffer.Do(func(v interface{}) {
		if count >= limit || v == nil {
			return
		}
		entry, ok := v.(LogEntry)
		if !ok {
			return
		}
		if levelFilter != "" && entry.Level != levelFilter {
			return
		}
		if sourceFilter != "" && entry.Source != sourceFilter {
			return
		}
		logs = append(logs, entry)
		count++
	})

	// Reverse to get newest first
	for i := 0; i < len(logs)/2; i++ {
		logs[i], logs[len(logs)-1-i] = logs[len(logs)-1-i], logs[i]
	}

	return logs
}

// Debug logs a debug-level message
func (m *Manager) Debug(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelDebug, source, message, metadata)
}

// Info logs an info-level message
func (m *Manager) Info(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelInfo, source, message, metadata)
}

// Warn logs a warning-level message
func (m *Manager) Warn(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelWarn, source, message, metadata)
}

// Error logs an error-level message
func (m *Manager) Error(source, message string, metadata map[string]interface{}) {
	m.Log(LogLevelError, source, message, metadata)
}

// logInterceptWriter implements io.Writer so that Go's standard log package
// output is captured and routed through the logging manager.
type logInterceptWriter struct {
	manager *Manager
}

// Write parses "[Source] message" format from standard log.Printf calls
// and routes them into the structured log system.
func (w *logInterceptWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	// Strip the default "2006/01/02 15:04:05 " prefix if present
	if len(msg) > 20 && msg[4] == '/' && msg[7] == '/' && msg[10] == ' ' {
		msg = strings.TrimSpace(msg[20:])
	}

	level := LogLevelInfo
	lowerMsg := strings.ToLower(msg)
	if strings.Contains(lowerMsg, "error") || strings.Contains(lowerMsg, "fail") {
		level = LogLevelError
	} else if strings.Contains(lowerMsg, "warn") {
		level = LogLevelWarn
	}

	source := "system"
	if len(msg) > 2 && msg[0] == '[' {
		end := strings.Index(msg, "]")
		if end > 1 {
			source = strings.ToLower(msg[1:end])
			msg = strings.TrimSpace(msg[end+1:])
		}
	}

	w.manager.Log(level, source, msg, nil)
	return len(p), nil
}

// InstallLogInterceptor redirects Go's standard log package through this
// manager. Call once at startup after creating the manager.
func (m *Manager) InstallLogInterceptor() {
	log.SetOutput(&logInterceptWriter{manager: m})
	log.SetFlags(0)
}
