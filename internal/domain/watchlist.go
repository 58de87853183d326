package domain

import "time"

// WatchlistEntry is a movie a user saved for later, with the movie expanded.
type WatchlistEntry struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"userId"`
	MovieID int64     `json:"movieId"`
	AddedAt time.Time `json:"addedAt"`
	Movie   *Movie    `json:"movie,omitempty"`
}
