package tracker

import (
	"sync"

	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/store"
)

// Registry keeps one Controller per account, created on first use.
type Registry struct {
	mu       sync.Mutex
	backend  store.Backend
	genres   model.Genres
	opts     []Option
	sessions map[uint64]*Controller
}

func NewRegistry(backend store.Backend, genres model.Genres, opts ...Option) *Registry {
	return &Registry{
		backend:  backend,
		genres:   genres,
		opts:     opts,
		sessions: map[uint64]*Controller{},
	}
}

// For returns the controller of ownerID.
func (r *Registry) For(ownerID uint64) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[ownerID]
	if !ok {
		c = NewController(ownerID, r.backend.ForOwner(ownerID), r.genres, r.opts...)
		r.sessions[ownerID] = c
	}
	return c
}

// Genres returns the enumeration shared by every controller.
func (r *Registry) Genres() model.Genres { return r.genres }
