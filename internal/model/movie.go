package model

// Movie is a watched movie as recorded by a user.  The same struct is
// written to the document store and decoded from each fetched document;
// it carries no validation of its own.
//
// Fields:
//  ID           – opaque document key assigned by the store on create.
//                 Empty until the first successful save and never stored
//                 as a document field.
//  Title        – movie title.
//  Director     – director name.
//  Year         – release year.
//  Rating       – personal rating on a 0..5 scale.
//  Genre        – one of the configured genre labels.
//  SeenInCinema – whether the movie was watched in a cinema.
type Movie struct {
    ID           string `json:"id,omitempty" bson:"-"`
    Title        string `json:"title" bson:"title"`
    Director     string `json:"director" bson:"director"`
    Year         int    `json:"year" bson:"year"`
    Rating       int    `json:"rating" bson:"rating"`
    Genre        string `json:"genre" bson:"genre"`
    SeenInCinema bool   `json:"seen_in_cinema" bson:"seen_in_cinema"`
}

// MinRating and MaxRating bound Movie.Rating.
const (
    MinRating = 0
    MaxRating = 5
)
