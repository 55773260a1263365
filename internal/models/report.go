package models

// Report is the aggregate view for one search term.
// Nil AverageLikes and MostTweeted mean there were no matches.
type Report struct {
	DailyCount     []int          `json:"daily_count"`
	UniqueAuthors  int            `json:"unique_authors"`
	AverageLikes   *float64       `json:"average_likes"`
	UniquePlaceIDs []string       `json:"unique_place_ids"`
	HourlyCount    map[string]int `json:"hourly_count"`
	MostTweeted    *string        `json:"most_tweeted"`
}
