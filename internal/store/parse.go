package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tg_broadcast_bot/internal/domain"
)

// Known per-record field names in the backing document.
const (
	fieldTitle   = "title"
	fieldType    = "type"
	fieldAddedAt = "added_at"
)

// parseDocument decodes the registry document with a token scanner so the
// key order of the JSON object, which encoding/json maps discard, becomes
// the registry's iteration order.
func parseDocument(data []byte) ([]int64, map[int64]domain.ChatRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, &CorruptError{Reason: "not valid JSON", Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, &CorruptError{Reason: "top-level value is not an object"}
	}

	order := make([]int64, 0)
	records := make(map[int64]domain.ChatRecord)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, &CorruptError{Reason: "truncated document", Err: err}
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, &CorruptError{Reason: fmt.Sprintf("unexpected key token %v", keyTok)}
		}

		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, nil, &CorruptError{Reason: fmt.Sprintf("key %q is not a chat id", key), Err: err}
		}

		var fields map[string]json.RawMessage
		if err := dec.Decode(&fields); err != nil {
			return nil, nil, &CorruptError{Reason: fmt.Sprintf("record %s is not an object", key), Err: err}
		}

		rec, err := parseRecord(chatID, fields)
		if err != nil {
			return nil, nil, err
		}

		if _, seen := records[chatID]; !seen {
			order = append(order, chatID)
		}
		records[chatID] = rec
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, &CorruptError{Reason: "truncated document", Err: err}
	}

	return order, records, nil
}

func parseRecord(chatID int64, fields map[string]json.RawMessage) (domain.ChatRecord, error) {
	key := strconv.FormatInt(chatID, 10)

	titleRaw, ok := fields[fieldTitle]
	if !ok {
		return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s is missing %q", key, fieldTitle)}
	}
	var title string
	if err := json.Unmarshal(titleRaw, &title); err != nil {
		return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s has a non-string %q", key, fieldTitle), Err: err}
	}

	typeRaw, ok := fields[fieldType]
	if !ok {
		return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s is missing %q", key, fieldType)}
	}
	var typeStr string
	if err := json.Unmarshal(typeRaw, &typeStr); err != nil {
		return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s has a non-string %q", key, fieldType), Err: err}
	}
	chatType, err := domain.ParseChatType(typeStr)
	if err != nil {
		return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s: %v", key, err)}
	}

	rec := domain.ChatRecord{
		ChatID: chatID,
		Title:  title,
		Type:   chatType,
	}

	if addedRaw, ok := fields[fieldAddedAt]; ok {
		var addedStr string
		if err := json.Unmarshal(addedRaw, &addedStr); err != nil {
			return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s has a non-string %q", key, fieldAddedAt), Err: err}
		}
		addedAt, err := parseAddedAt(addedStr)
		if err != nil {
			return domain.ChatRecord{}, &CorruptError{Reason: fmt.Sprintf("record %s has an unparseable %q", key, fieldAddedAt), Err: err}
		}
		rec.AddedAt = addedAt
	}

	for k, v := range fields {
		if k == fieldTitle || k == fieldType || k == fieldAddedAt {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

// parseAddedAt accepts RFC3339 plus the fractional-second ISO form earlier
// deployments of this bot wrote.
func parseAddedAt(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
