package tracker

import (
	"strconv"
	"strings"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// Form carries the editable fields of a movie as the user typed them.
// Year stays raw text until Save parses it.
type Form struct {
	Title        string `json:"title"`
	Director     string `json:"director"`
	Year         string `json:"year"`
	Rating       int    `json:"rating"`
	Genre        string `json:"genre"`
	SeenInCinema bool   `json:"seen_in_cinema"`

	// GenreFallback is set by Select when the record's genre is not in the
	// enumeration and Genre was replaced by the first enumerated genre.
	GenreFallback bool `json:"genre_fallback,omitempty"`
}

// validate turns the form into movie fields.  The returned movie has no ID.
// An empty genre means the first enumerated genre, the default selection of
// a freshly cleared form.
func (f Form) validate(genres model.Genres) (model.Movie, error) {
	title := strings.TrimSpace(f.Title)
	director := strings.TrimSpace(f.Director)
	yearText := strings.TrimSpace(f.Year)
	if title == "" || director == "" || yearText == "" {
		return model.Movie{}, ErrMissingFields
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return model.Movie{}, ErrInvalidYear
	}
	if f.Rating < model.MinRating || f.Rating > model.MaxRating {
		return model.Movie{}, ErrInvalidRating
	}
	genre := strings.TrimSpace(f.Genre)
	if genre == "" {
		genre = genres.First()
	}
	if !genres.Contains(genre) {
		return model.Movie{}, ErrUnknownGenre
	}
	return model.Movie{
		Title:        title,
		Director:     director,
		Year:         year,
		Rating:       f.Rating,
		Genre:        genre,
		SeenInCinema: f.SeenInCinema,
	}, nil
}

// formFrom fills a form from a stored movie.
func formFrom(m model.Movie, genres model.Genres) Form {
	f := Form{
		Title:        m.Title,
		Director:     m.Director,
		Year:         strconv.Itoa(m.Year),
		Rating:       m.Rating,
		Genre:        m.Genre,
		SeenInCinema: m.SeenInCinema,
	}
	if !genres.Contains(m.Genre) {
		f.Genre = genres.First()
		f.GenreFallback = true
	}
	return f
}
