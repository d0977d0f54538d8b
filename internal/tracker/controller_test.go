package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/store"
)

var testGenres = model.NewGenres([]string{"Drama", "Comedy", "Sci-Fi"})

type recordingNotifier struct {
	saved   []model.Movie
	created []bool
	deleted []string
}

func (r *recordingNotifier) MovieSaved(_ context.Context, _ uint64, m model.Movie, created bool) {
	r.saved = append(r.saved, m)
	r.created = append(r.created, created)
}

func (r *recordingNotifier) MovieDeleted(_ context.Context, _ uint64, id string) {
	r.deleted = append(r.deleted, id)
}

func newTestController(t *testing.T) (*Controller, *store.Memory, *recordingNotifier) {
	t.Helper()
	mem := store.NewMemory()
	n := &recordingNotifier{}
	return NewController(7, mem, testGenres, WithNotifier(n)), mem, n
}

func duneForm() Form {
	return Form{Title: "Dune", Director: "Villeneuve", Year: "2021", Rating: 5, Genre: "Sci-Fi", SeenInCinema: true}
}

func TestSaveRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		form Form
	}{
		{"empty title", Form{Title: "", Director: "Nolan", Year: "2010"}},
		{"blank title", Form{Title: "   ", Director: "Nolan", Year: "2010"}},
		{"empty director", Form{Title: "Inception", Director: "", Year: "2010"}},
		{"empty year", Form{Title: "Inception", Director: "Nolan", Year: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mem, _ := newTestController(t)
			_, _, err := c.Save(context.Background(), tt.form)
			assert.ErrorIs(t, err, ErrMissingFields)
			assert.True(t, IsValidation(err))
			assert.Zero(t, mem.Calls(store.OpAdd))
			assert.Zero(t, mem.Calls(store.OpSet))
		})
	}
}

func TestSaveRejectsBadYearRatingAndGenre(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Form)
		want error
	}{
		{"letters", func(f *Form) { f.Year = "abc" }, ErrInvalidYear},
		{"decimal", func(f *Form) { f.Year = "20.21" }, ErrInvalidYear},
		{"rating too high", func(f *Form) { f.Rating = 6 }, ErrInvalidRating},
		{"negative rating", func(f *Form) { f.Rating = -1 }, ErrInvalidRating},
		{"unknown genre", func(f *Form) { f.Genre = "Western" }, ErrUnknownGenre},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mem, _ := newTestController(t)
			f := duneForm()
			tt.edit(&f)
			_, _, err := c.Save(context.Background(), f)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, mem.Calls(store.OpAdd))
		})
	}
}

func TestSaveCreatesThenLoadYieldsRecord(t *testing.T) {
	ctx := context.Background()
	c, _, n := newTestController(t)

	saved, _, err := c.Save(ctx, duneForm())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	require.NoError(t, c.Load(ctx))
	got := c.Movies()
	require.Len(t, got, 1)
	assert.Equal(t, model.Movie{
		ID: saved.ID, Title: "Dune", Director: "Villeneuve", Year: 2021,
		Rating: 5, Genre: "Sci-Fi", SeenInCinema: true,
	}, got[0])

	assert.Equal(t, []bool{true}, n.created)
}

func TestSaveTrimsFieldsAndDefaultsGenre(t *testing.T) {
	c, _, _ := newTestController(t)

	saved, _, err := c.Save(context.Background(), Form{Title: "  Heat ", Director: " Mann", Year: " 1995 "})
	require.NoError(t, err)
	assert.Equal(t, "Heat", saved.Title)
	assert.Equal(t, "Mann", saved.Director)
	assert.Equal(t, 1995, saved.Year)
	assert.Equal(t, "Drama", saved.Genre)
}

func TestSaveWithSelectionUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	c, mem, n := newTestController(t)

	saved, created, err := c.Save(ctx, duneForm())
	require.NoError(t, err)
	assert.True(t, created)

	form, err := c.Select(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "2021", form.Year)
	form.Year = "1984"

	updated, created, err := c.Save(ctx, form)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, 1, mem.Calls(store.OpAdd))

	require.NoError(t, c.Load(ctx))
	got := c.Movies()
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)
	assert.Equal(t, 1984, got[0].Year)

	_, selected := c.Selected()
	assert.False(t, selected)
	assert.Equal(t, []bool{true, false}, n.created)
}

func TestSaveRemoteFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	c, mem, n := newTestController(t)
	saved, _, err := c.Save(ctx, duneForm())
	require.NoError(t, err)
	_, err = c.Select(saved.ID)
	require.NoError(t, err)

	boom := errors.New("quota exceeded")
	mem.FailOn(store.OpSet, boom)

	f := duneForm()
	f.Year = "1984"
	_, _, err = c.Save(ctx, f)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "update", remote.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "update failed: quota exceeded", err.Error())

	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, 2021, sel.Year)
	assert.Equal(t, 2021, c.Movies()[0].Year)
	assert.Len(t, n.saved, 1)
}

func TestSaveCreateFailureReportsCreate(t *testing.T) {
	c, mem, _ := newTestController(t)
	mem.FailOn(store.OpAdd, errors.New("offline"))

	_, _, err := c.Save(context.Background(), duneForm())
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "create", remote.Op)
	assert.Empty(t, c.Movies())
}

func TestSaveReloadFailureStillSaves(t *testing.T) {
	c, mem, _ := newTestController(t)
	mem.FailOn(store.OpGet, errors.New("read timeout"))

	saved, _, err := c.Save(context.Background(), duneForm())
	assert.ErrorIs(t, err, ErrReloadFailed)
	assert.NotEmpty(t, saved.ID)

	got := c.Movies()
	require.Len(t, got, 1)
	assert.Equal(t, saved.ID, got[0].ID)
}

func TestLoadFailureKeepsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	_, _, err := c.Save(ctx, duneForm())
	require.NoError(t, err)

	_, err = mem.Add(ctx, model.Movie{Title: "Heat", Director: "Mann", Year: 1995, Genre: "Drama"})
	require.NoError(t, err)
	mem.FailOn(store.OpGet, errors.New("unavailable"))

	err = c.Load(ctx)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "load", remote.Op)
	assert.Len(t, c.Movies(), 1)
}

func seed(t *testing.T, mem *store.Memory, movies ...model.Movie) []string {
	t.Helper()
	ids := make([]string, 0, len(movies))
	for _, m := range movies {
		id, err := mem.Add(context.Background(), m)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestRefreshFiltersByGenre(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	ids := seed(t, mem,
		model.Movie{Title: "A", Genre: "Drama", Rating: 3},
		model.Movie{Title: "B", Genre: "Comedy", Rating: 5},
	)

	got, err := c.Refresh(ctx, ViewOptions{Genre: "Comedy"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[1], got[0].ID)

	got, err = c.Refresh(ctx, ViewOptions{Genre: model.AllGenres})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, ViewOptions{Genre: model.AllGenres}, c.Options())
}

func TestRefreshRereadsCollection(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	seed(t, mem, model.Movie{Title: "A", Genre: "Drama"})

	got, err := c.Refresh(ctx, ViewOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	seed(t, mem, model.Movie{Title: "B", Genre: "Drama"})
	got, err = c.Refresh(ctx, ViewOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRefreshFailureFiltersStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	seed(t, mem,
		model.Movie{Title: "A", Genre: "Drama"},
		model.Movie{Title: "B", Genre: "Comedy"},
	)
	require.NoError(t, c.Load(ctx))

	mem.FailOn(store.OpGet, errors.New("down"))
	got, err := c.Refresh(ctx, ViewOptions{Genre: "Drama"})
	assert.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Title)
}

func TestSelectUnknownID(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.Select("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Select("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectFlagsGenreOutsideEnumeration(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	ids := seed(t, mem, model.Movie{Title: "Unforgiven", Director: "Eastwood", Year: 1992, Genre: "Western"})
	require.NoError(t, c.Load(ctx))

	f, err := c.Select(ids[0])
	require.NoError(t, err)
	assert.True(t, f.GenreFallback)
	assert.Equal(t, "Drama", f.Genre)

	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "Western", sel.Genre)
}

func TestClearReturnsToCreateMode(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	saved, _, err := c.Save(ctx, duneForm())
	require.NoError(t, err)
	_, err = c.Select(saved.ID)
	require.NoError(t, err)

	c.Clear()
	_, _, err = c.Save(ctx, Form{Title: "Arrival", Director: "Villeneuve", Year: "2016", Genre: "Sci-Fi"})
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Calls(store.OpAdd))
	assert.Len(t, c.Movies(), 2)
}

func TestDeleteRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	seed(t, mem, model.Movie{Title: "A", Genre: "Drama"})
	require.NoError(t, c.Load(ctx))

	pos, err := c.Delete(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Equal(t, -1, pos)
	assert.Zero(t, mem.Calls(store.OpDelete))
	assert.Len(t, c.Movies(), 1)
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	ctx := context.Background()
	c, mem, n := newTestController(t)
	ids := seed(t, mem,
		model.Movie{Title: "A", Genre: "Drama"},
		model.Movie{Title: "B", Genre: "Drama"},
		model.Movie{Title: "C", Genre: "Drama"},
	)
	_, err := c.Select(ids[1])
	assert.ErrorIs(t, err, ErrNotFound) // nothing loaded yet
	require.NoError(t, c.Load(ctx))
	_, err = c.Select(ids[1])
	require.NoError(t, err)

	pos, err := c.Delete(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	got := c.Movies()
	require.Len(t, got, 2)
	assert.Equal(t, ids[0], got[0].ID)
	assert.Equal(t, ids[2], got[1].ID)
	_, selected := c.Selected()
	assert.False(t, selected)
	assert.Equal(t, []string{ids[1]}, n.deleted)

	require.NoError(t, c.Load(ctx))
	assert.Len(t, c.Movies(), 2)
}

func TestDeleteFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	ids := seed(t, mem, model.Movie{Title: "A", Genre: "Drama"})
	require.NoError(t, c.Load(ctx))
	mem.FailOn(store.OpDelete, errors.New("permission denied"))

	_, err := c.Delete(ctx, ids[0])
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "delete", remote.Op)
	assert.Len(t, c.Movies(), 1)
}

func TestMoviesReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	seed(t, mem, model.Movie{Title: "A", Genre: "Drama"})
	require.NoError(t, c.Load(ctx))

	got := c.Movies()
	got[0].Title = "changed"
	assert.Equal(t, "A", c.Movies()[0].Title)
}

func TestStatsCoverFullSnapshot(t *testing.T) {
	ctx := context.Background()
	c, mem, _ := newTestController(t)
	seed(t, mem,
		model.Movie{Title: "A", Genre: "Drama", Rating: 2, SeenInCinema: true},
		model.Movie{Title: "B", Genre: "Comedy", Rating: 4},
		model.Movie{Title: "C", Genre: "Drama", Rating: 3},
	)
	_, err := c.Refresh(ctx, ViewOptions{Genre: "Comedy"})
	require.NoError(t, err)

	s := c.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.SeenInCinema)
	assert.InDelta(t, 3.0, s.AverageRating, 1e-9)
	assert.Equal(t, map[string]int{"Drama": 2, "Comedy": 1}, s.ByGenre)
}

// blockingNotifier parks in MovieSaved and MovieDeleted until release is closed.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) MovieSaved(context.Context, uint64, model.Movie, bool) {
	b.entered <- struct{}{}
	<-b.release
}

func (b *blockingNotifier) MovieDeleted(context.Context, uint64, string) {
	b.entered <- struct{}{}
	<-b.release
}

func TestSlowNotifierDoesNotHoldController(t *testing.T) {
	ctx := context.Background()
	n := &blockingNotifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewController(7, store.NewMemory(), testGenres, WithNotifier(n))

	saveDone := make(chan error, 1)
	go func() {
		_, _, err := c.Save(ctx, duneForm())
		saveDone <- err
	}()
	<-n.entered

	read := make(chan []model.Movie, 1)
	go func() { read <- c.Movies() }()
	select {
	case got := <-read:
		require.Len(t, got, 1)
		assert.Equal(t, "Dune", got[0].Title)
	case <-time.After(2 * time.Second):
		t.Fatal("Movies blocked while the notifier was running")
	}

	close(n.release)
	require.NoError(t, <-saveDone)

	_, err := c.Delete(ctx, c.Movies()[0].ID)
	require.NoError(t, err)
}
