package cms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RecordID identifies a CMS record. The API may send it as a number or a string.
type RecordID string

// UnmarshalJSON accepts numbers, strings, null and relation objects shaped
// {"id": ...} or {"data": {"id": ...}}.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	case data[0] == '{':
		var rel struct {
			ID   *RecordID        `json:"id"`
			Data *json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &rel); err != nil {
			return err
		}
		if rel.ID != nil {
			*id = *rel.ID
			return nil
		}
		if rel.Data != nil {
			return id.UnmarshalJSON(*rel.Data)
		}
		*id = ""
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("record id: %w", err)
		}
		*id = RecordID(n.String())
		return nil
	}
}

// MarshalJSON writes numeric ids as numbers so relation fields keep their type.
// Only the canonical decimal form is unquoted; "007" or "+5" stay strings.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id RecordID) String() string {
	return string(id)
}

// Chapter is one chapter record of a work.
type Chapter struct {
	ID            RecordID `json:"id,omitempty"`
	Title         string   `json:"title"`
	VolumeLabel   string   `json:"volume,omitempty"`
	URL           string   `json:"url"`
	OrderIndex    int      `json:"order"`
	WorkID        RecordID `json:"work,omitempty"`
	ContributorID RecordID `json:"contributor,omitempty"`
}

// OrderPatch is the body of a reorder update; only the order field is sent.
type OrderPatch struct {
	OrderIndex int `json:"order"`
}

// decodeEntry decodes a collection entry in either flat form or the
// {"id": ..., "attributes": {...}} envelope.
func decodeEntry(raw json.RawMessage, out any) error {
	var env struct {
		ID         RecordID        `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if len(env.Attributes) == 0 {
		return json.Unmarshal(raw, out)
	}
	if err := json.Unmarshal(env.Attributes, out); err != nil {
		return err
	}
	if c, ok := out.(*Chapter); ok && c.ID == "" {
		c.ID = env.ID
	}
	return nil
}
