package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/ipc"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestSinkAppendsNDJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "actions.log")
	sink := Open(path, zap.NewNop())

	sink.LogSuccess("read_file", json.RawMessage(`{"path":"/tmp/x"}`), ipc.TrustUser, false, "contents")
	sink.LogRejected("shell_exec", json.RawMessage(`{"command":"rm -rf /"}`), ipc.TrustUser, "user declined")

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first Entry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first entry: %v", err)
	}
	if first.Action != "read_file" || first.Result != ResultOK {
		t.Fatalf("unexpected first entry: %+v", first)
	}

	var second Entry
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second entry: %v", err)
	}
	if second.Result != ResultRejected || second.Approved == nil || *second.Approved {
		t.Fatalf("unexpected second entry: %+v", second)
	}
}

func TestSinkLogRateLimitedAndTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	sink := Open(path, zap.NewNop())

	sink.LogRateLimited("shell_exec", nil, ipc.TrustUser)
	sink.LogTimeout("shell_exec", nil, ipc.TrustUser)

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var rl Entry
	_ = json.Unmarshal([]byte(lines[0]), &rl)
	if rl.Result != ResultRateLimited {
		t.Fatalf("expected rate_limited result, got %q", rl.Result)
	}

	var to Entry
	_ = json.Unmarshal([]byte(lines[1]), &to)
	if to.Result != ResultTimeout {
		t.Fatalf("expected timeout result, got %q", to.Result)
	}
}

func TestTruncateIsUTF8Safe(t *testing.T) {
	// Each "é" is a 2-byte UTF-8 sequence; truncating at a byte count must
	// back off to the nearest code point boundary instead of splitting one
	// in half.
	s := strings.Repeat("é", 5000)

	got := Truncate(s, 4096)
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Fatalf("expected truncated suffix, got suffix %q", got[len(got)-20:])
	}
	if !utf8.ValidString(got) {
		t.Fatal("expected truncated output to remain valid UTF-8")
	}

	kept := strings.TrimSuffix(got, "...[truncated]")
	if len(kept) > 4096 {
		t.Fatalf("expected at most 4096 bytes kept, got %d", len(kept))
	}
	if len(kept) < 4096-1 {
		t.Fatalf("expected truncation to back off by at most one byte, kept %d", len(kept))
	}
}

func TestTruncateNoopUnderLimit(t *testing.T) {
	s := "short string"
	if got := Truncate(s, 4096); got != s {
		t.Fatalf("expected no-op for short string, got %q", got)
	}
}
