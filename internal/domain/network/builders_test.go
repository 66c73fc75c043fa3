package network

import (
	"fmt"

	"scent-memory-network/internal/domain/memory"
)

// recordBuilder assembles memory records for tests.
type recordBuilder struct {
	rec   memory.Record
	scent *memory.ScentRecord
}

func newRecord(id string) *recordBuilder {
	return &recordBuilder{rec: memory.Record{ID: id, Title: "Memory " + id, Processed: true}}
}

func (b *recordBuilder) pending() *recordBuilder {
	b.rec.Processed = false
	return b
}

func (b *recordBuilder) emotion(e string) *recordBuilder {
	b.rec.Emotion = e
	return b
}

func (b *recordBuilder) ensureScent() *memory.ScentRecord {
	if b.scent == nil {
		b.scent = &memory.ScentRecord{}
	}
	return b.scent
}

func (b *recordBuilder) notes(notes ...string) *recordBuilder {
	b.ensureScent().TopNotes = notes
	return b
}

func (b *recordBuilder) family(f string) *recordBuilder {
	b.ensureScent().ScentFamily = f
	return b
}

func (b *recordBuilder) scentEmotion(e string) *recordBuilder {
	b.ensureScent().Emotion = e
	return b
}

func (b *recordBuilder) color(c string) *recordBuilder {
	b.ensureScent().Color = c
	return b
}

func (b *recordBuilder) build() memory.Record {
	rec := b.rec
	if b.scent != nil {
		rec.ExtractedScents = []memory.ScentRecord{*b.scent}
	}
	return rec
}

func records(builders ...*recordBuilder) []memory.Record {
	out := make([]memory.Record, len(builders))
	for i, b := range builders {
		out[i] = b.build()
	}
	return out
}

func numbered(n int, configure func(i int, b *recordBuilder)) []memory.Record {
	out := make([]memory.Record, n)
	for i := range out {
		b := newRecord(fmt.Sprintf("m%02d", i))
		if configure != nil {
			configure(i, b)
		}
		out[i] = b.build()
	}
	return out
}

// wideBuilder connects any pair on the sphere, so rule tests do not depend
// on where the layout puts two nodes.
func wideBuilder() *Builder {
	return NewBuilder(BuilderConfig{MaxDistanceFraction: 1}, nil)
}
