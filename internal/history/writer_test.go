package history

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readTextLines(t *testing.T, path string) []record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	reader := snappy.NewReader(f)
	scanner := bufio.NewScanner(reader)
	var out []record
	for scanner.Scan() {
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestDisabledWriterIsANoOp(t *testing.T) {
	w, err := Open("", "conn-1", false, nil)
	if err != nil {
		t.Fatalf("open disabled writer: %v", err)
	}
	if w.Enabled() {
		t.Fatal("expected a disabled writer")
	}
	if err := w.AppendMessage("m1", "alice", "hi"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	w.DeleteMessage("m1")
	if err := w.Close(); err != nil {
		t.Fatalf("expected no-op close, got %v", err)
	}
}

func TestAppendMessageAndDeleteMessage(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w, err := Open(tmp, "conn one", true, fixedClock(now))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := w.AppendMessage("msg-1", "alice", "hello there"); err != nil {
		t.Fatalf("append message: %v", err)
	}
	w.DeleteMessage("msg-1")

	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readTextLines(t, filepath.Join(w.Directory(), "messages.jsonl.sz"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Kind != kindMessage || lines[0].MessageID != "msg-1" {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	decoded, err := base64.StdEncoding.DecodeString(lines[0].TextB64)
	if err != nil || string(decoded) != "hello there" {
		t.Fatalf("unexpected text payload: %q err=%v", decoded, err)
	}
	if lines[1].Kind != kindDeletion || lines[1].DeleteMode != "message" {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}
}

func TestDeleteUserRemovesOnlyThatLogin(t *testing.T) {
	tmp := t.TempDir()
	w, err := Open(tmp, "conn-two", true, fixedClock(time.Now()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	_ = w.AppendMessage("m1", "alice", "a")
	_ = w.AppendMessage("m2", "bob", "b")
	w.DeleteUser("alice")

	w.mu.Lock()
	_, aliceStillTracked := w.recent["m1"]
	_, bobStillTracked := w.recent["m2"]
	w.mu.Unlock()

	if aliceStillTracked {
		t.Fatal("expected alice's message to be untracked after DeleteUser")
	}
	if !bobStillTracked {
		t.Fatal("expected bob's message to remain tracked")
	}
}

func TestDeleteAllClearsTrackedMessages(t *testing.T) {
	tmp := t.TempDir()
	w, err := Open(tmp, "conn-three", true, fixedClock(time.Now()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	_ = w.AppendMessage("m1", "alice", "a")
	_ = w.AppendMessage("m2", "bob", "b")
	w.DeleteAll()

	w.mu.Lock()
	remaining := len(w.recent)
	w.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected all tracked messages cleared, got %d remaining", remaining)
	}
}

func TestAppendEventBatchWritesWithoutError(t *testing.T) {
	tmp := t.TempDir()
	w, err := Open(tmp, "conn-four", true, fixedClock(time.Now()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if err := w.AppendEventBatch(1, []byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("append event batch: %v", err)
	}
}
