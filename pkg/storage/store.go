// Package storage keeps itinerary documents addressable by identifier.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// Store is the itinerary session store. Every backend behaves the same way:
// Create mints a fresh identifier, Replace mints another one and retires the
// old identifier, and Get fails with itinerary.ErrUnknownDocument for
// anything that is not live.
type Store interface {
	Create(ctx context.Context, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error)
	Get(ctx context.Context, id string) (*itinerary.Document, error)
	Replace(ctx context.Context, oldID string, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error)
	Close() error
}

// identity supplies identifiers and timestamps to a backend.
type identity struct {
	newID func() string
	now   func() time.Time
}

func defaultIdentity() identity {
	return identity{newID: uuid.NewString, now: time.Now}
}

func (i identity) create(entries []itinerary.Entry, req itinerary.Request) *itinerary.Document {
	return itinerary.NewDocument(i.newID(), cloneEntries(entries), cloneRequest(req), i.now())
}

func (i identity) replacement(old *itinerary.Document, entries []itinerary.Entry, req itinerary.Request) *itinerary.Document {
	doc := i.create(entries, req)
	doc.PreviousID = old.ID
	doc.Revision = old.Revision + 1
	return doc
}

func cloneEntries(entries []itinerary.Entry) []itinerary.Entry {
	out := make([]itinerary.Entry, len(entries))
	copy(out, entries)
	return out
}

func cloneRequest(req itinerary.Request) itinerary.Request {
	req.Dates = append([]string(nil), req.Dates...)
	req.Preferences = append([]string(nil), req.Preferences...)
	req.Excluded = append([]string(nil), req.Excluded...)
	return req
}

func cloneDocument(doc *itinerary.Document) *itinerary.Document {
	out := *doc
	out.Entries = cloneEntries(doc.Entries)
	out.Request = cloneRequest(doc.Request)
	return &out
}
