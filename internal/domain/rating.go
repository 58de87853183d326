package domain

import "time"

// Rating bounds; values outside the closed range are rejected.
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// Rating represents a single user's rating for a movie.
type Rating struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	MovieID   int64     `json:"movieId"`
	Value     float64   `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RatingWithUser is a rating joined with the owner's username.
type RatingWithUser struct {
	Rating
	Username string `json:"username"`
}

// RatingAggregate provides average and count for a movie's ratings.
type RatingAggregate struct {
	Average float64
	Count   int
}

// Aggregate computes the arithmetic mean and count of ratings. An empty set yields 0/0.
func Aggregate(ratings []Rating) RatingAggregate {
	if len(ratings) == 0 {
		return RatingAggregate{}
	}
	var sum float64
	for _, r := range ratings {
		sum += r.Value
	}
	return RatingAggregate{Average: sum / float64(len(ratings)), Count: len(ratings)}
}
