package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/movie-tracker/internal/config"
	"github.com/iliyamo/movie-tracker/internal/middleware"
	"github.com/iliyamo/movie-tracker/internal/model"
	"github.com/iliyamo/movie-tracker/internal/tracker"
)

const remoteTimeout = 5 * time.Second

// MovieHandler serves the movie list of the authenticated user through the
// user's controller session.
type MovieHandler struct {
	Movies   *tracker.Registry
	Redis    *redis.Client
	CacheCfg config.CacheConfig
}

func NewMovieHandler(reg *tracker.Registry, rdb *redis.Client, cacheCfg config.CacheConfig) *MovieHandler {
	return &MovieHandler{Movies: reg, Redis: rdb, CacheCfg: cacheCfg}
}

// ----- DTOs -----

// movieReq is the form as posted.  Year is accepted as a JSON number or
// string and kept as text, the way the form holds it.
type movieReq struct {
	Title        string          `json:"title"`
	Director     string          `json:"director"`
	Year         json.RawMessage `json:"year"`
	Rating       int             `json:"rating"`
	Genre        string          `json:"genre"`
	SeenInCinema bool            `json:"seen_in_cinema"`
}

func (r movieReq) form() tracker.Form {
	return tracker.Form{
		Title:        r.Title,
		Director:     r.Director,
		Year:         yearText(r.Year),
		Rating:       r.Rating,
		Genre:        r.Genre,
		SeenInCinema: r.SeenInCinema,
	}
}

func yearText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(raw))
	if t == "null" {
		return ""
	}
	return t
}

type listResp struct {
	Items    []model.Movie       `json:"items"`
	Selected *string             `json:"selected"`
	Options  tracker.ViewOptions `json:"options"`
	Warning  string              `json:"warning,omitempty"`
}

type saveResp struct {
	Movie   model.Movie   `json:"movie"`
	Created bool          `json:"created"`
	Items   []model.Movie `json:"items"`
	Warning string        `json:"warning,omitempty"`
}

type deleteResp struct {
	RemovedAt int           `json:"removed_at"`
	Items     []model.Movie `json:"items"`
	Warning   string        `json:"warning,omitempty"`
}

type genresResp struct {
	Genres    []string         `json:"genres"`
	Filters   []string         `json:"filters"`
	AllGenres string           `json:"all_genres"`
	SortModes []model.SortMode `json:"sort_modes"`
}

func selectedID(ctl *tracker.Controller) *string {
	if m, ok := ctl.Selected(); ok {
		return &m.ID
	}
	return nil
}

// invalidate drops the caller's cached responses after a write.
func (h *MovieHandler) invalidate(ctx context.Context, uid uint64) {
	if err := middleware.InvalidateUser(context.WithoutCancel(ctx), h.Redis, h.CacheCfg, uid); err != nil {
		log.Warningf("cache invalidation for user %d failed: %v", uid, err)
	}
}

// parseOptions reads ?genre=&cinema=&sort= into view options.
func parseOptions(c echo.Context, genres model.Genres) (tracker.ViewOptions, error) {
	o := tracker.ViewOptions{
		Genre: strings.TrimSpace(c.QueryParam("genre")),
		Sort:  model.SortMode(strings.TrimSpace(c.QueryParam("sort"))),
	}
	if o.Genre != "" && o.Genre != model.AllGenres && !genres.Contains(o.Genre) {
		return o, tracker.ErrUnknownGenre
	}
	if v := strings.TrimSpace(c.QueryParam("cinema")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.New("cinema must be true or false")
		}
		o.CinemaOnly = b
	}
	return o, nil
}

// Genres lists the genre enumeration, the filter choices and the sort modes.
func (h *MovieHandler) Genres(c echo.Context) error {
	g := h.Movies.Genres()
	return c.JSON(http.StatusOK, genresResp{
		Genres:    g,
		Filters:   g.FilterOptions(),
		AllGenres: model.AllGenres,
		SortModes: model.SortModes,
	})
}

// List applies the query's filters and ordering and returns the reloaded
// list.  When the reload fails the previous snapshot is returned with 502.
func (h *MovieHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	opts, err := parseOptions(c, h.Movies.Genres())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
	defer cancel()

	ctl := h.Movies.For(uid)
	items, err := ctl.Refresh(ctx, opts)
	resp := listResp{Items: items, Selected: selectedID(ctl), Options: opts}
	if err != nil {
		resp.Warning = err.Error()
		return c.JSON(statusOf(err), resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Save creates a movie, or overwrites the selected one.
func (h *MovieHandler) Save(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req movieReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
	defer cancel()

	ctl := h.Movies.For(uid)
	mv, created, err := ctl.Save(ctx, req.form())
	if err != nil && !errors.Is(err, tracker.ErrReloadFailed) {
		return writeError(c, err)
	}
	h.invalidate(ctx, uid)

	resp := saveResp{Movie: mv, Created: created, Items: ctl.Movies()}
	if err != nil {
		resp.Warning = err.Error()
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}

// Select marks a movie for editing and returns its form.
func (h *MovieHandler) Select(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	f, err := h.Movies.For(uid).Select(c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

// Clear drops the selection.
func (h *MovieHandler) Clear(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	h.Movies.For(uid).Clear()
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a movie, then clears the selection and reloads the list.
func (h *MovieHandler) Delete(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
	defer cancel()

	ctl := h.Movies.For(uid)
	pos, err := ctl.Delete(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(ctx, uid)

	ctl.Clear()
	resp := deleteResp{RemovedAt: pos}
	if err := ctl.Load(ctx); err != nil {
		resp.Warning = err.Error()
	}
	resp.Items = ctl.Movies()
	return c.JSON(http.StatusOK, resp)
}

// Stats reloads the list and summarizes it, ignoring the view filters.
func (h *MovieHandler) Stats(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), remoteTimeout)
	defer cancel()

	ctl := h.Movies.For(uid)
	if err := ctl.Load(ctx); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ctl.Stats())
}
