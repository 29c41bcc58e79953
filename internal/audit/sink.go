// Package audit implements the agent kernel's append-only action log: every
// tool execution attempt, whether approved, rejected, rate-limited, timed
// out, or failed, is recorded as one NDJSON line.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/ipc"
)

// Result classifies how a logged action concluded.
type Result string

const (
	ResultOK          Result = "ok"
	ResultError       Result = "error"
	ResultRejected    Result = "rejected"
	ResultTimeout     Result = "timeout"
	ResultRateLimited Result = "rate_limited"
)

// Entry is one line of the audit log.
type Entry struct {
	Timestamp  time.Time       `json:"timestamp"`
	Action     string          `json:"action"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	TrustLevel ipc.TrustLevel  `json:"trust_level"`
	Approved   *bool           `json:"user_approved,omitempty"`
	Result     Result          `json:"result"`
	Details    string          `json:"details,omitempty"`
}

// maxOutputBytes caps how many bytes of a tool's output or error detail get
// written into a single audit line.
const maxOutputBytes = 4096

// Sink appends Entry values to a single append-only NDJSON file. A write
// failure is logged and swallowed: a full disk or a missing parent
// directory must never abort the tool execution that's being audited.
type Sink struct {
	path   string
	logger *zap.Logger
}

// Open returns a Sink writing to path. The file and its parent directory
// are created lazily on the first append, not here, so constructing a Sink
// never fails.
func Open(path string, logger *zap.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

func (s *Sink) append(e Entry) {
	if err := s.tryAppend(e); err != nil {
		s.logger.Error("failed to write audit entry",
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}

func (s *Sink) tryAppend(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	body = append(body, '\n')

	if _, err := f.Write(body); err != nil {
		return err
	}
	return f.Sync()
}

func approvedPtr(v bool) *bool { return &v }

// LogSuccess records a tool call that executed and returned a result.
func (s *Sink) LogSuccess(action string, args json.RawMessage, trust ipc.TrustLevel, requiredConfirm bool, output string) {
	e := Entry{
		Timestamp:  time.Now(),
		Action:     action,
		Arguments:  args,
		TrustLevel: trust,
		Result:     ResultOK,
		Details:    Truncate(output, maxOutputBytes),
	}
	if requiredConfirm {
		e.Approved = approvedPtr(true)
	}
	s.append(e)
}

// LogError records a tool call that was attempted but failed during
// execution.
func (s *Sink) LogError(action string, args json.RawMessage, trust ipc.TrustLevel, errMsg string) {
	s.append(Entry{
		Timestamp:  time.Now(),
		Action:     action,
		Arguments:  args,
		TrustLevel: trust,
		Result:     ResultError,
		Details:    Truncate(errMsg, maxOutputBytes),
	})
}

// LogRejected records a tool call the user explicitly declined.
func (s *Sink) LogRejected(action string, args json.RawMessage, trust ipc.TrustLevel, reason string) {
	s.append(Entry{
		Timestamp:  time.Now(),
		Action:     action,
		Arguments:  args,
		TrustLevel: trust,
		Approved:   approvedPtr(false),
		Result:     ResultRejected,
		Details:    reason,
	})
}

// LogTimeout records a confirmation request that nobody answered in time.
func (s *Sink) LogTimeout(action string, args json.RawMessage, trust ipc.TrustLevel) {
	s.append(Entry{
		Timestamp:  time.Now(),
		Action:     action,
		Arguments:  args,
		TrustLevel: trust,
		Result:     ResultTimeout,
	})
}

// LogRateLimited records a destructive action denied by the rate limiter
// before any confirmation was even requested.
func (s *Sink) LogRateLimited(action string, args json.RawMessage, trust ipc.TrustLevel) {
	s.append(Entry{
		Timestamp:  time.Now(),
		Action:     action,
		Arguments:  args,
		TrustLevel: trust,
		Result:     ResultRateLimited,
		Details:    "rate limit exceeded",
	})
}

// Truncate shortens s to at most maxBytes bytes, backing off to the
// nearest preceding UTF-8 code point boundary (never splitting one in
// half) and appending a marker so a reader can tell the entry was clipped.
func Truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}
