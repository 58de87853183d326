package httpserver

import (
	"net/url"
	"testing"
)

func FuzzParseMovieQuery(f *testing.F) {
	seeds := []string{
		"page=2&limit=5&sort=title&order=DESC",
		"genre=Action&title=Heat",
		"page=abc",
		"order=sideways",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return
		}
		query, err := parseMovieQuery(values)
		if err != nil {
			return
		}
		if query.Page < 0 || query.Limit < 0 {
			t.Fatalf("negative paging accepted: %+v", query)
		}
		if query.Order != "" && query.Order != "ASC" && query.Order != "DESC" {
			t.Fatalf("order %q accepted", query.Order)
		}
	})
}
