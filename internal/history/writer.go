// Package history implements the append-only message/event log that backs
// CLEARMSG/CLEARCHAT moderation and the web API's history-replay surface.
// It follows the same dual-codec layout the pack's replay writer uses for
// gameplay artefacts: snappy for the line-oriented text log, zstd for dense
// binary event batches, rotated into a fresh directory once per opened
// connection rather than once per match.
package history

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var connectionCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// entryKind distinguishes the persisted line types in the text log.
type entryKind string

const (
	kindMessage    entryKind = "message"
	kindDeletion   entryKind = "deletion"
	kindModeration entryKind = "moderation"
)

// record is the JSON shape of every line written to the text log.
type record struct {
	Kind       entryKind `json:"kind"`
	Timestamp  string    `json:"timestamp"`
	MessageID  string    `json:"message_id,omitempty"`
	Login      string    `json:"login,omitempty"`
	TextB64    string    `json:"text_b64,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	DeleteMode string    `json:"delete_mode,omitempty"`
}

type messageMeta struct {
	login string
}

// Writer logs chat messages, moderation actions, and dense bus/player event
// batches for one chat-loop connection. It is disabled (a no-op) when
// constructed with enabled=false, matching the Router's "log-if-enabled"
// contract.
type Writer struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	now     func() time.Time

	textFile   *os.File
	textStream *snappy.Writer

	eventFile   *os.File
	eventStream *zstd.Encoder

	// recent tracks messages seen in this connection so DeleteMessage/
	// DeleteUser can attribute a deletion marker without re-reading the log.
	recent map[string]messageMeta
}

// Open rotates a new history bundle under root for one chat-loop connection,
// identified by connectionID (typically a timestamp or stream session id).
// When enabled is false, Open still returns a usable Writer whose methods
// are all no-ops, so callers never need a nil check.
func Open(root, connectionID string, enabled bool, clock func() time.Time) (*Writer, error) {
	if !enabled {
		return &Writer{enabled: false}, nil
	}
	if root == "" {
		return nil, fmt.Errorf("history root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := connectionCleaner.ReplaceAllString(connectionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	textFile, err := os.Create(filepath.Join(path, "messages.jsonl.sz"))
	if err != nil {
		return nil, err
	}
	textStream := snappy.NewBufferedWriter(textFile)

	eventFile, err := os.Create(filepath.Join(path, "events.bin.zst"))
	if err != nil {
		textStream.Close()
		textFile.Close()
		return nil, err
	}
	eventStream, err := zstd.NewWriter(eventFile)
	if err != nil {
		textStream.Close()
		textFile.Close()
		eventFile.Close()
		return nil, err
	}

	return &Writer{
		dir:         path,
		enabled:     true,
		now:         clock,
		textFile:    textFile,
		textStream:  textStream,
		eventFile:   eventFile,
		eventStream: eventStream,
		recent:      make(map[string]messageMeta),
	}, nil
}

// Enabled reports whether this Writer is actually persisting anything.
func (w *Writer) Enabled() bool {
	return w != nil && w.enabled
}

// Directory exposes the directory backing this history bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendMessage records an inbound chat message so it can later be located
// by DeleteMessage/DeleteUser.
func (w *Writer) AppendMessage(messageID, login, text string) error {
	if !w.Enabled() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recent[messageID] = messageMeta{login: login}
	return w.writeLineLocked(record{
		Kind:      kindMessage,
		Timestamp: w.now().UTC().Format(time.RFC3339Nano),
		MessageID: messageID,
		Login:     login,
		TextB64:   base64.StdEncoding.EncodeToString([]byte(text)),
	})
}

// AppendModeration records a moderation action not tied to a single
// message (bans, timeouts, role changes).
func (w *Writer) AppendModeration(detail string) error {
	if !w.Enabled() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLineLocked(record{
		Kind:      kindModeration,
		Timestamp: w.now().UTC().Format(time.RFC3339Nano),
		Detail:    detail,
	})
}

// DeleteMessage marks a single message deleted by id, per CLEARMSG.
func (w *Writer) DeleteMessage(messageID string) {
	if !w.Enabled() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.recent, messageID)
	_ = w.writeLineLocked(record{
		Kind:       kindDeletion,
		Timestamp:  w.now().UTC().Format(time.RFC3339Nano),
		MessageID:  messageID,
		DeleteMode: "message",
	})
}

// DeleteUser marks every message from login deleted, per CLEARCHAT with a
// target user.
func (w *Writer) DeleteUser(login string) {
	if !w.Enabled() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, meta := range w.recent {
		if meta.login == login {
			delete(w.recent, id)
		}
	}
	_ = w.writeLineLocked(record{
		Kind:       kindDeletion,
		Timestamp:  w.now().UTC().Format(time.RFC3339Nano),
		Login:      login,
		DeleteMode: "user",
	})
}

// DeleteAll marks every tracked message deleted, per a bare CLEARCHAT.
func (w *Writer) DeleteAll() {
	if !w.Enabled() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recent = make(map[string]messageMeta)
	_ = w.writeLineLocked(record{
		Kind:       kindDeletion,
		Timestamp:  w.now().UTC().Format(time.RFC3339Nano),
		DeleteMode: "all",
	})
}

func (w *Writer) writeLineLocked(rec record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.textStream.Write(line); err != nil {
		return err
	}
	if _, err := w.textStream.Write([]byte("\n")); err != nil {
		return err
	}
	return w.textStream.Flush()
}

// AppendEventBatch persists a dense, length-prefixed binary batch of
// player/bus events (e.g. queue/mixer transitions), mirroring the replay
// writer's frame format.
func (w *Writer) AppendEventBatch(sequence uint64, payload []byte) error {
	if !w.Enabled() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	header := make([]byte, 8+8+4)
	binary.LittleEndian.PutUint64(header[0:8], sequence)
	binary.LittleEndian.PutUint64(header[8:16], uint64(w.now().UTC().UnixNano()))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(payload)))
	if _, err := w.eventStream.Write(header); err != nil {
		return err
	}
	_, err := w.eventStream.Write(payload)
	return err
}

// Close flushes and releases the underlying file handles. Safe to call on a
// disabled Writer.
func (w *Writer) Close() error {
	if !w.Enabled() {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if err := w.textStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.textFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
