// Package store persists the chat registry as a flat JSON document on disk.
//
// The document maps stringified chat IDs to per-chat metadata objects:
//
//	{
//	  "-1001234": {"title": "Group A", "type": "supergroup", "added_at": "..."},
//	  "-1005678": {"title": "Channel B", "type": "channel"}
//	}
//
// Iteration order is the insertion order of the document and survives process
// restarts. Fields this version of the bot does not understand are preserved
// verbatim on every rewrite.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"tg_broadcast_bot/internal/domain"
)

// Registry is the durable set of chats the bot was last observed a member
// of. It is the single writer of its backing file; every mutation rewrites
// the whole document atomically before the in-memory state is updated.
type Registry struct {
	mu      sync.Mutex
	path    string
	order   []int64
	records map[int64]domain.ChatRecord
}

// Open loads the registry document at path. A missing file yields an empty
// registry; an existing but unusable file yields a *CorruptError and the
// file is left untouched.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, errors.New("registry path is required")
	}

	reg := &Registry{
		path:    path,
		order:   make([]int64, 0),
		records: make(map[int64]domain.ChatRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, fmt.Errorf("read chat registry %s: %w", path, err)
	}

	order, records, err := parseDocument(data)
	if err != nil {
		var corrupt *CorruptError
		if errors.As(err, &corrupt) {
			corrupt.Path = path
			return nil, corrupt
		}
		return nil, &CorruptError{Path: path, Reason: "unreadable document", Err: err}
	}

	reg.order = order
	reg.records = records
	return reg, nil
}

// Path returns the location of the backing document.
func (r *Registry) Path() string {
	return r.path
}

// Upsert inserts or overwrites the record for chatID and persists the
// document. Applying the same input twice yields the same stored state. The
// first insertion stamps added_at; updates keep it, along with any preserved
// unknown fields.
func (r *Registry) Upsert(chatID int64, title string, chatType domain.ChatType) error {
	if r == nil {
		return errors.New("registry is not initialized")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}
	if _, err := domain.ParseChatType(string(chatType)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[chatID]

	rec := domain.ChatRecord{
		ChatID: chatID,
		Title:  title,
		Type:   chatType,
	}
	if existed {
		rec.AddedAt = prev.AddedAt
		rec.Extra = prev.Extra
	} else {
		rec.AddedAt = time.Now().UTC().Truncate(time.Second)
		r.order = append(r.order, chatID)
	}
	r.records[chatID] = rec

	if err := r.persistLocked("upsert"); err != nil {
		if existed {
			r.records[chatID] = prev
		} else {
			delete(r.records, chatID)
			r.order = r.order[:len(r.order)-1]
		}
		return err
	}

	return nil
}

// Remove deletes the record for chatID and persists the document. Removing
// an absent chat is a no-op, not an error.
func (r *Registry) Remove(chatID int64) error {
	if r == nil {
		return errors.New("registry is not initialized")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[chatID]
	if !existed {
		return nil
	}

	pos := -1
	for i, id := range r.order {
		if id == chatID {
			pos = i
			break
		}
	}

	delete(r.records, chatID)
	if pos >= 0 {
		r.order = append(r.order[:pos], r.order[pos+1:]...)
	}

	if err := r.persistLocked("remove"); err != nil {
		r.records[chatID] = prev
		if pos >= 0 {
			r.order = append(r.order, 0)
			copy(r.order[pos+1:], r.order[pos:])
			r.order[pos] = chatID
		}
		return err
	}

	return nil
}

// List returns a snapshot of all records in document insertion order. Later
// registry mutations do not affect a returned snapshot.
func (r *Registry) List() []domain.ChatRecord {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ChatRecord, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		if len(rec.Extra) > 0 {
			extra := make(map[string]json.RawMessage, len(rec.Extra))
			for k, v := range rec.Extra {
				extra[k] = v
			}
			rec.Extra = extra
		}
		out = append(out, rec)
	}

	return out
}

// Len returns the number of tracked chats.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// Check verifies the backing document is still reachable. A missing file is
// healthy (nothing registered yet, or first write still pending).
func (r *Registry) Check() error {
	if r == nil {
		return errors.New("registry is not initialized")
	}

	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat chat registry %s: %w", r.path, err)
	}

	return nil
}

// writeDocument replaces the file at path atomically via a temp file and
// rename, fsyncing before the swap. Overridable for tests.
var writeDocument = func(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

// persistLocked rewrites the whole document. Callers hold r.mu and roll the
// in-memory state back when this fails.
func (r *Registry) persistLocked(op string) error {
	doc, err := r.encodeLocked()
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	if err := writeDocument(r.path, doc); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	return nil
}

func (r *Registry) encodeLocked() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(strconv.FormatInt(id, 10))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		body, err := encodeRecord(r.records[id])
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}

	buf.WriteByte('}')

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	pretty.WriteByte('\n')

	return pretty.Bytes(), nil
}

func encodeRecord(rec domain.ChatRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := writeField(fieldTitle, rec.Title); err != nil {
		return nil, err
	}
	if err := writeField(fieldType, string(rec.Type)); err != nil {
		return nil, err
	}
	if !rec.AddedAt.IsZero() {
		if err := writeField(fieldAddedAt, rec.AddedAt.UTC().Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(rec.Extra))
	for k := range rec.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)

	for _, k := range extraKeys {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(rec.Extra[k])
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
