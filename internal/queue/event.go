package queue

// ActivityQueue is the durable queue carrying MovieEvent messages.
const ActivityQueue = "movies.activity"

// Event types.
const (
    MovieCreated = "movie.created"
    MovieUpdated = "movie.updated"
    MovieDeleted = "movie.deleted"
)

// MovieEvent is published after a movie write reached the document store.
// Deletions carry only the owner and movie id.
type MovieEvent struct {
    Type         string `json:"type"`
    OwnerID      uint64 `json:"owner_id"`
    MovieID      string `json:"movie_id"`
    Title        string `json:"title,omitempty"`
    Director     string `json:"director,omitempty"`
    Year         int    `json:"year,omitempty"`
    Rating       int    `json:"rating"`
    Genre        string `json:"genre,omitempty"`
    SeenInCinema bool   `json:"seen_in_cinema"`
    OccurredAt   string `json:"occurred_at"`
}
