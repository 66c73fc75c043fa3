package memory

import (
	"encoding/json"
	"fmt"
	"strings"

	"scent-memory-network/pkg/errors"
	"scent-memory-network/pkg/validation"
)

// Rejection records why an input element was dropped.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Batch is the result of decoding a record list at the boundary.
// Records keeps the supplied order.
type Batch struct {
	Records  []Record    `json:"records"`
	Rejected []Rejection `json:"rejected,omitempty"`
	// Warnings lists records that were kept with a field cleared, such as an
	// unparseable color.
	Warnings []Rejection `json:"warnings,omitempty"`
}

// DecodeRecords parses a JSON array of memory records. Elements that are not
// objects of the expected shape, or that fail validation, are dropped and
// reported; the rest are returned in order. Only a payload that is not a JSON
// array at all is an error.
func DecodeRecords(data []byte) (*Batch, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewValidationError("memory list must be a JSON array").WithCause(err)
	}
	return decodeElements(raw), nil
}

func decodeElements(raw []json.RawMessage) *Batch {
	batch := &Batch{Records: make([]Record, 0, len(raw))}

	for i, element := range raw {
		var rec Record
		if err := json.Unmarshal(element, &rec); err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{
				Index:  i,
				ID:     peekID(element),
				Reason: fmt.Sprintf("malformed record: %v", err),
			})
			continue
		}

		if err := Validate(&rec); err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{Index: i, ID: rec.ID, Reason: err.Error()})
			continue
		}

		if cleared := sanitize(&rec); len(cleared) > 0 {
			batch.Warnings = append(batch.Warnings, Rejection{
				Index:  i,
				ID:     rec.ID,
				Reason: "cleared invalid " + strings.Join(cleared, ", "),
			})
		}

		batch.Records = append(batch.Records, rec)
	}

	return batch
}

// ValidateRecords applies boundary validation to records that were decoded
// elsewhere, for example by an HTTP request body.
func ValidateRecords(records []Record) *Batch {
	batch := &Batch{Records: make([]Record, 0, len(records))}
	for i := range records {
		rec := records[i]
		if err := Validate(&rec); err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{Index: i, ID: rec.ID, Reason: err.Error()})
			continue
		}
		if cleared := sanitize(&rec); len(cleared) > 0 {
			batch.Warnings = append(batch.Warnings, Rejection{
				Index:  i,
				ID:     rec.ID,
				Reason: "cleared invalid " + strings.Join(cleared, ", "),
			})
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch
}

// Validate checks the structural rules of a single record.
func Validate(rec *Record) error {
	return validation.GetValidator().Validate(rec)
}

// sanitize clears optional fields whose content cannot be used, so that the
// network falls back to defaults for them. It returns the cleared field names.
func sanitize(rec *Record) []string {
	var cleared []string
	for i := range rec.ExtractedScents {
		color := strings.TrimSpace(rec.ExtractedScents[i].Color)
		if color != "" && !validation.IsHexColor(color) {
			cleared = append(cleared, fmt.Sprintf("extracted_scents[%d].color", i))
			color = ""
		}
		rec.ExtractedScents[i].Color = color
	}
	return cleared
}

func peekID(element json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(element, &probe); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(probe.ID, &id); err != nil {
		return ""
	}
	return id
}
