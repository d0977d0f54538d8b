package model

// SortMode selects the ordering of the movie list.
type SortMode string

const (
    SortNone       SortMode = ""            // keep filter order
    SortRatingDesc SortMode = "rating-desc" // highest rating first
    SortYearAsc    SortMode = "year-asc"    // oldest first
)

// SortModes lists the known modes in display order.
var SortModes = []SortMode{SortNone, SortRatingDesc, SortYearAsc}
