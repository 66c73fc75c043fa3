// Package memory defines the memory records the network is built from and
// validates them at the point they enter the service.
package memory

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// MemoryType is the upload kind of a memory.
type MemoryType string

const (
	MemoryTypeText  MemoryType = "text"
	MemoryTypePhoto MemoryType = "photo"
	MemoryTypePDF   MemoryType = "pdf"
)

// IsValid checks if the memory type is one of the known kinds
func (t MemoryType) IsValid() bool {
	switch t {
	case MemoryTypeText, MemoryTypePhoto, MemoryTypePDF:
		return true
	}
	return false
}

// Record is one memory as supplied by the memories backend. Only the first
// extracted scent is ever used for classification and coloring.
type Record struct {
	ID              string        `json:"id" validate:"notblank,max=128"`
	Title           string        `json:"title" validate:"max=500"`
	Occasion        string        `json:"occasion,omitempty" validate:"max=200"`
	MemoryType      MemoryType    `json:"memory_type,omitempty" validate:"omitempty,oneof=text photo pdf"`
	Emotion         string        `json:"emotion,omitempty" validate:"max=100"`
	Processed       bool          `json:"processed"`
	CreatedAt       Timestamp     `json:"created_at,omitempty"`
	ExtractedScents []ScentRecord `json:"extracted_scents,omitempty" validate:"dive"`
}

// ScentRecord is a fragrance extraction attached to a memory.
type ScentRecord struct {
	ScentName   string   `json:"scent_name,omitempty" validate:"max=200"`
	Brand       string   `json:"brand,omitempty" validate:"max=200"`
	ScentFamily string   `json:"scent_family,omitempty" validate:"max=100"`
	TopNotes    []string `json:"top_notes,omitempty" validate:"max=64"`
	HeartNotes  []string `json:"heart_notes,omitempty" validate:"max=64"`
	BaseNotes   []string `json:"base_notes,omitempty" validate:"max=64"`
	Color       string   `json:"color,omitempty"`
	Emotion     string   `json:"emotion,omitempty" validate:"max=100"`
}

// PrimaryScent returns the first extracted scent, if any.
func (r *Record) PrimaryScent() (ScentRecord, bool) {
	if len(r.ExtractedScents) == 0 {
		return ScentRecord{}, false
	}
	return r.ExtractedScents[0], true
}

// EffectiveEmotion is the scent-level emotion when present, otherwise the
// memory's own tag. Whitespace-only tags count as absent.
func (r *Record) EffectiveEmotion() string {
	if scent, ok := r.PrimaryScent(); ok {
		if e := strings.TrimSpace(scent.Emotion); e != "" {
			return e
		}
	}
	return strings.TrimSpace(r.Emotion)
}

// Notes flattens top, heart and base notes in that order, dropping blanks.
func (s ScentRecord) Notes() []string {
	notes := make([]string, 0, len(s.TopNotes)+len(s.HeartNotes)+len(s.BaseNotes))
	for _, tier := range [][]string{s.TopNotes, s.HeartNotes, s.BaseNotes} {
		for _, n := range tier {
			if n = strings.TrimSpace(n); n != "" {
				notes = append(notes, n)
			}
		}
	}
	return notes
}

// Counts summarises a record list for placeholder states.
type Counts struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
}

// Count tallies processed and pending records.
func Count(records []Record) Counts {
	var c Counts
	for i := range records {
		if records[i].Processed {
			c.Processed++
		} else {
			c.Pending++
		}
	}
	return c
}

// Timestamp accepts the ISO-8601 variants the memories backend emits,
// with or without a zone offset.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
