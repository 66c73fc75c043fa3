package memory

import (
	"encoding/json"
	"testing"
	"time"

	"scent-memory-network/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecords_DropsMalformedKeepsRest(t *testing.T) {
	payload := `[
		{"id": "m1", "title": "Grandma's garden", "processed": true, "emotion": "Nostalgic",
		 "created_at": "2024-05-01T10:00:00.123456",
		 "extracted_scents": [{"scent_name": "Rose Absolue", "top_notes": ["Rose"], "color": "#E8B4B8"}]},
		{"id": 42, "title": "numeric id"},
		"not an object",
		{"id": "m3", "title": "Beach", "processed": true, "memory_type": "video"},
		{"id": "  ", "title": "blank id"},
		{"id": "m5", "title": "Rain", "processed": false, "memory_type": "photo",
		 "extracted_scents": [{"top_notes": ["petrichor"], "color": "blue"}]},
		{"id": "m6", "processed": true, "extracted_scents": [{"top_notes": [1, 2]}]}
	]`

	batch, err := DecodeRecords([]byte(payload))
	require.NoError(t, err)

	require.Len(t, batch.Records, 2)
	assert.Equal(t, "m1", batch.Records[0].ID)
	assert.Equal(t, "m5", batch.Records[1].ID)
	assert.Equal(t, 2024, batch.Records[0].CreatedAt.Year())

	rejected := map[int]string{}
	for _, r := range batch.Rejected {
		rejected[r.Index] = r.ID
	}
	assert.Equal(t, map[int]string{1: "", 2: "", 3: "m3", 4: "  ", 6: "m6"}, rejected)

	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, "m5", batch.Warnings[0].ID)
	assert.Empty(t, batch.Records[1].ExtractedScents[0].Color, "invalid color falls back")
}

func TestDecodeRecords_NotAnArray(t *testing.T) {
	_, err := DecodeRecords([]byte(`{"memories": []}`))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDecodeRecords_SparseRecordIsKept(t *testing.T) {
	batch, err := DecodeRecords([]byte(`[{"id": "only-id"}]`))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.False(t, batch.Records[0].Processed)
	assert.Empty(t, batch.Rejected)
}

func TestRecord_EffectiveEmotion(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{"memory tag", Record{Emotion: " Joyful "}, "Joyful"},
		{"scent overrides memory", Record{Emotion: "Calm", ExtractedScents: []ScentRecord{{Emotion: "Excited"}}}, "Excited"},
		{"blank scent tag falls through", Record{Emotion: "Calm", ExtractedScents: []ScentRecord{{Emotion: "  "}}}, "Calm"},
		{"only first scent counts", Record{ExtractedScents: []ScentRecord{{}, {Emotion: "Ignored"}}}, ""},
		{"none", Record{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.EffectiveEmotion())
		})
	}
}

func TestScentRecord_Notes(t *testing.T) {
	s := ScentRecord{
		TopNotes:   []string{"Bergamot", " "},
		HeartNotes: []string{" Rose "},
		BaseNotes:  []string{"Musk"},
	}
	assert.Equal(t, []string{"Bergamot", "Rose", "Musk"}, s.Notes())
	assert.Empty(t, ScentRecord{}.Notes())
}

func TestCount(t *testing.T) {
	c := Count([]Record{{Processed: true}, {Processed: false}, {Processed: true}})
	assert.Equal(t, Counts{Processed: 2, Pending: 1}, c)
}

func TestTimestamp_RoundTrip(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-02T03:04:05Z"`), &ts))
	assert.True(t, ts.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
