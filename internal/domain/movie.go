package domain

import "time"

// Genre is a provider genre mirrored locally. TMDBID is the provider identifier.
type Genre struct {
	ID     int64  `json:"id"`
	TMDBID int64  `json:"tmdbId"`
	Name   string `json:"name"`
}

// Movie represents the canonical movie entity in the database/service.
// Metadata fields are owned by the synchronizer; AverageRating and RatingCount
// by the rating aggregator.
type Movie struct {
	ID            int64      `json:"id"`
	TMDBID        int64      `json:"tmdbId"`
	Title         string     `json:"title"`
	Overview      string     `json:"overview"`
	PosterPath    string     `json:"posterPath"`
	ReleaseDate   *time.Time `json:"releaseDate"`
	AverageRating float64    `json:"averageRating"`
	RatingCount   int        `json:"ratingCount"`
	Genres        []Genre    `json:"genres"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// MovieGenre links a movie to one of its genres.
type MovieGenre struct {
	MovieID int64
	GenreID int64
}
