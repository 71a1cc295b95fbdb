// Package history keeps a local JSON log of composed messages handed to the
// send endpoint.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry is one sent message.
type Entry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Text      string          `json:"text"`
	SentAt    time.Time       `json:"sentAt"`
	Ack       json.RawMessage `json:"ack,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewEntry stamps text with a fresh id and the current time.
func NewEntry(sessionID, text string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Text:      text,
		SentAt:    time.Now().UTC(),
	}
}

// Append adds entries to the log at path, creating the file and its
// directory if necessary. An empty path disables the log.
func Append(path string, entries ...Entry) error {
	if path == "" || len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	existing, err := loadEntries(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		existing = nil
	}
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.SentAt.IsZero() {
			entry.SentAt = time.Now().UTC()
		}
		if len(entry.Ack) > 0 && !json.Valid(entry.Ack) {
			// Keep the file parseable when the service answers with junk.
			quoted, _ := json.Marshal(string(entry.Ack))
			entry.Ack = quoted
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		existing = append(existing, raw)
	}
	return writeEntries(path, existing)
}

// Load returns every logged entry, oldest first. A missing file is an empty
// log.
func Load(path string) ([]Entry, error) {
	raws, err := loadEntries(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func writeEntries(path string, entries []json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func loadEntries(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
