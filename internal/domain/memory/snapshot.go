package memory

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Snapshot is one fetched record list. Two snapshots with the same
// fingerprint describe the same network.
type Snapshot struct {
	Records     []Record  `json:"records"`
	Fingerprint uint64    `json:"fingerprint"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// NewSnapshot fingerprints records. The slice is kept, not copied.
func NewSnapshot(records []Record, fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		Records:     records,
		Fingerprint: Fingerprint(records),
		FetchedAt:   fetchedAt,
	}
}

// Counts tallies the snapshot's records.
func (s *Snapshot) Counts() Counts {
	return Count(s.Records)
}

// FingerprintHex renders the fingerprint for logs and ETags.
func (s *Snapshot) FingerprintHex() string {
	return strconv.FormatUint(s.Fingerprint, 16)
}

// Fingerprint hashes everything that can change a node or an edge: order,
// ids, processed flags, titles, emotions and the primary scent. Creation
// times and occasions are left out.
func Fingerprint(records []Record) uint64 {
	d := xxhash.New()
	field := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}

	for i := range records {
		r := &records[i]
		field(r.ID)
		field(strconv.FormatBool(r.Processed))
		field(r.Title)
		field(r.Emotion)
		if s, ok := r.PrimaryScent(); ok {
			field(s.ScentName)
			field(s.ScentFamily)
			field(s.Color)
			field(s.Emotion)
			for _, n := range s.Notes() {
				field(n)
			}
		}
		_, _ = d.Write([]byte{1})
	}
	return d.Sum64()
}
