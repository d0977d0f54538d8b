// Package tracker holds the movie list controller: the cached snapshot of
// a user's document collection, the record selected for editing, and the
// save/load/refresh/select/delete operations that keep them in step with
// the remote store.
package tracker

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/op/go-logging"

	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/store"
)

var log = logging.MustGetLogger("tracker")

// Notifier is told about writes that reached the document store.  It is
// called without the controller lock held.
type Notifier interface {
	MovieSaved(ctx context.Context, ownerID uint64, m model.Movie, created bool)
	MovieDeleted(ctx context.Context, ownerID uint64, id string)
}

type nopNotifier struct{}

func (nopNotifier) MovieSaved(context.Context, uint64, model.Movie, bool) {}
func (nopNotifier) MovieDeleted(context.Context, uint64, string)         {}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the receiver of write notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// Controller owns one user's movie list.  The full snapshot is rebuilt
// from the collection on every load; the view is that snapshot after the
// current filters and ordering.  Operations are serialized, so at most one
// remote call is in flight per controller.
type Controller struct {
	mu       sync.Mutex
	ownerID  uint64
	coll     store.Collection
	genres   model.Genres
	notifier Notifier

	all      []model.Movie
	view     []model.Movie
	opts     ViewOptions
	selected *model.Movie
}

// NewController returns a controller with an empty cache and no selection.
func NewController(ownerID uint64, coll store.Collection, genres model.Genres, opts ...Option) *Controller {
	c := &Controller{
		ownerID:  ownerID,
		coll:     coll,
		genres:   genres,
		notifier: nopNotifier{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Save validates f and writes it.  With no record selected a new document
// is created; otherwise the selected record is overwritten in full under
// its existing id.  created reports which of the two happened.  On success
// the selection is cleared and the list is reloaded.  Validation failures
// make no remote call.  A failed write leaves every piece of state as it
// was.
//
// When the write succeeds but the reload does not, the saved movie is
// returned together with an error wrapping ErrReloadFailed.  The notifier
// runs after the controller is unlocked.
func (c *Controller) Save(ctx context.Context, f Form) (model.Movie, bool, error) {
	mv, created, err := c.save(ctx, f)
	if mv.ID != "" {
		c.notifier.MovieSaved(ctx, c.ownerID, mv, created)
	}
	return mv, created, err
}

// save returns a movie with an ID only when the remote write succeeded.
func (c *Controller) save(ctx context.Context, f Form) (model.Movie, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mv, err := f.validate(c.genres)
	if err != nil {
		return model.Movie{}, false, err
	}

	created := c.selected == nil
	if created {
		id, err := c.coll.Add(ctx, mv)
		if err != nil {
			return model.Movie{}, created, &RemoteError{Op: "create", Err: err}
		}
		mv.ID = id
	} else {
		mv.ID = c.selected.ID
		if err := c.coll.Set(ctx, mv.ID, mv); err != nil {
			return model.Movie{}, created, &RemoteError{Op: "update", Err: err}
		}
	}

	c.remember(mv)
	c.selected = nil
	log.Debugf("owner=%d saved movie id=%s created=%t", c.ownerID, mv.ID, created)

	if err := c.load(ctx); err != nil {
		return mv, created, fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	return mv, created, nil
}

// remember puts a written record into the snapshot so the cache reflects
// the write even if the following reload fails.
func (c *Controller) remember(mv model.Movie) {
	if i := slices.IndexFunc(c.all, func(m model.Movie) bool { return m.ID == mv.ID }); i >= 0 {
		c.all[i] = mv
	} else {
		c.all = append(c.all, mv)
	}
	c.view = Apply(c.all, c.opts)
}

// Load fetches the whole collection and replaces the cached snapshot with
// it, then recomputes the view with the current options.  On failure the
// previous snapshot stays in place.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Controller) load(ctx context.Context) error {
	movies, err := c.coll.Get(ctx)
	if err != nil {
		log.Warningf("owner=%d load failed: %v", c.ownerID, err)
		return &RemoteError{Op: "load", Err: err}
	}
	c.all = movies
	c.view = Apply(c.all, c.opts)
	return nil
}

// Refresh stores o as the current view options, reloads the collection and
// returns the filtered and ordered list.  If the reload fails the options
// are applied to the previous snapshot and the error is returned with it.
func (c *Controller) Refresh(ctx context.Context, o ViewOptions) ([]model.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts = o
	err := c.load(ctx)
	if err != nil {
		c.view = Apply(c.all, c.opts)
	}
	return slices.Clone(c.view), err
}

// Select marks the cached record with the given id as the one being
// edited, so the next Save updates it, and returns its fields as a form.
// A genre missing from the enumeration is replaced by the first genre and
// flagged on the form.
func (c *Controller) Select(id string) (Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := slices.IndexFunc(c.all, func(m model.Movie) bool { return m.ID == id })
	if id == "" || i < 0 {
		return Form{}, ErrNotFound
	}
	sel := c.all[i]
	c.selected = &sel

	f := formFrom(sel, c.genres)
	if f.GenreFallback {
		log.Warningf("owner=%d movie id=%s has genre %q outside the enumeration; form shows %q",
			c.ownerID, sel.ID, sel.Genre, f.Genre)
	}
	return f, nil
}

// Clear drops the selection; the next Save creates a new record.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// Delete removes the document with the given id.  On success the record is
// removed from the view at its position and from the snapshot, and that
// position is returned (-1 when the record was filtered out of the view).
// Callers are expected to Clear and Load afterwards.  An empty id fails
// with ErrInvalidID without a remote call.  A failed delete leaves the
// cache unchanged.
func (c *Controller) Delete(ctx context.Context, id string) (int, error) {
	pos, err := c.delete(ctx, id)
	if err == nil {
		c.notifier.MovieDeleted(ctx, c.ownerID, id)
	}
	return pos, err
}

func (c *Controller) delete(ctx context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		return -1, ErrInvalidID
	}
	if err := c.coll.Delete(ctx, id); err != nil {
		return -1, &RemoteError{Op: "delete", Err: err}
	}

	byID := func(m model.Movie) bool { return m.ID == id }
	pos := slices.IndexFunc(c.view, byID)
	if pos >= 0 {
		c.view = slices.Delete(c.view, pos, pos+1)
	}
	if i := slices.IndexFunc(c.all, byID); i >= 0 {
		c.all = slices.Delete(c.all, i, i+1)
	}
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	return pos, nil
}

// Movies returns a copy of the current view.
func (c *Controller) Movies() []model.Movie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.view)
}

// Selected returns a copy of the selected record, if any.
func (c *Controller) Selected() (model.Movie, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return model.Movie{}, false
	}
	return *c.selected, true
}

// Options returns the current view options.
func (c *Controller) Options() ViewOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Stats summarizes the full cached snapshot, ignoring view filters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.all)
}
