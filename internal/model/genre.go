package model

import "strings"

// AllGenres is the filter value meaning "no genre filter".
const AllGenres = "All genres"

// DefaultGenres is used when no genre list is configured.
var DefaultGenres = []string{
    "Action",
    "Adventure",
    "Animation",
    "Comedy",
    "Documentary",
    "Drama",
    "Horror",
    "Romance",
    "Sci-Fi",
    "Thriller",
}

// Genres is the ordered, fixed set of genre labels a movie may carry.
type Genres []string

// NewGenres trims and de-duplicates labels, keeping their order.  An
// empty result falls back to DefaultGenres.
func NewGenres(labels []string) Genres {
    seen := make(map[string]bool, len(labels))
    out := make(Genres, 0, len(labels))
    for _, l := range labels {
        l = strings.TrimSpace(l)
        if l == "" || l == AllGenres || seen[l] {
            continue
        }
        seen[l] = true
        out = append(out, l)
    }
    if len(out) == 0 {
        out = append(out, DefaultGenres...)
    }
    return out
}

// IndexOf returns the position of label or -1.
func (g Genres) IndexOf(label string) int {
    for i, v := range g {
        if v == label {
            return i
        }
    }
    return -1
}

// Contains reports whether label is one of the enumerated genres.
func (g Genres) Contains(label string) bool { return g.IndexOf(label) >= 0 }

// First returns the first enumerated genre, or "" for an empty set.
func (g Genres) First() string {
    if len(g) == 0 {
        return ""
    }
    return g[0]
}

// FilterOptions lists the values accepted by the genre filter: the
// sentinel followed by every genre.
func (g Genres) FilterOptions() []string {
    out := make([]string, 0, len(g)+1)
    out = append(out, AllGenres)
    return append(out, g...)
}
