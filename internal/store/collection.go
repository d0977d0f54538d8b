// Package store holds the document collection the movie tracker persists
// to.  A Collection is the whole remote surface the tracker needs: add a
// document, read every document, overwrite one by key and delete one by
// key.  Keys are opaque strings chosen by the backend.
package store

import (
	"context"
	"errors"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// ErrNotFound is returned by Set and Delete when no document has the key.
var ErrNotFound = errors.New("document not found")

// ErrInvalidID is returned when a key is empty or malformed for the backend.
var ErrInvalidID = errors.New("invalid document id")

// Collection is a keyed collection of movie documents.
type Collection interface {
	// Add stores m as a new document and returns the key assigned to it.
	// m.ID is ignored.
	Add(ctx context.Context, m model.Movie) (string, error)
	// Get returns every document in the backend's iteration order with
	// ID populated from the document key.
	Get(ctx context.Context) ([]model.Movie, error)
	// Set overwrites the whole document stored under id.
	Set(ctx context.Context, id string, m model.Movie) error
	// Delete removes the document stored under id.
	Delete(ctx context.Context, id string) error
}

// Backend hands out one Collection per account.
type Backend interface {
	ForOwner(ownerID uint64) Collection
}
