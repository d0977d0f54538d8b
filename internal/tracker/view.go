package tracker

import (
	"cmp"
	"slices"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// ViewOptions are the list filters and ordering chosen by the user.
type ViewOptions struct {
	Genre      string         `json:"genre"`
	CinemaOnly bool           `json:"cinema_only"`
	Sort       model.SortMode `json:"sort"`
}

// keepsAllGenres reports whether the genre filter is off.
func (o ViewOptions) keepsAllGenres() bool {
	return o.Genre == "" || o.Genre == model.AllGenres
}

// Apply filters movies by genre and cinema viewing (both must match) and
// then orders them by o.Sort.  Sorting is stable, so ties keep their
// filter order, and an unknown sort mode leaves the filter order alone.
// The input slice is not modified.
func Apply(movies []model.Movie, o ViewOptions) []model.Movie {
	out := make([]model.Movie, 0, len(movies))
	for _, m := range movies {
		if !o.keepsAllGenres() && m.Genre != o.Genre {
			continue
		}
		if o.CinemaOnly && !m.SeenInCinema {
			continue
		}
		out = append(out, m)
	}

	switch o.Sort {
	case model.SortRatingDesc:
		slices.SortStableFunc(out, func(a, b model.Movie) int { return cmp.Compare(b.Rating, a.Rating) })
	case model.SortYearAsc:
		slices.SortStableFunc(out, func(a, b model.Movie) int { return cmp.Compare(a.Year, b.Year) })
	}
	return out
}

// Stats summarizes a movie list.
type Stats struct {
	Total         int            `json:"total"`
	SeenInCinema  int            `json:"seen_in_cinema"`
	AverageRating float64        `json:"average_rating"`
	ByGenre       map[string]int `json:"by_genre"`
}

func summarize(movies []model.Movie) Stats {
	s := Stats{Total: len(movies), ByGenre: map[string]int{}}
	sum := 0
	for _, m := range movies {
		sum += m.Rating
		s.ByGenre[m.Genre]++
		if m.SeenInCinema {
			s.SeenInCinema++
		}
	}
	if s.Total > 0 {
		s.AverageRating = float64(sum) / float64(s.Total)
	}
	return s
}
