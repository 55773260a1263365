package models

// Tweet is the canonical record stored by every backend.
// Field names follow the TSV export columns.
type Tweet struct {
	Text         string  `json:"text" bson:"text"`
	ID           string  `json:"id" bson:"id"`
	Timestamp    string  `json:"ts1" bson:"ts1"`
	PlaceID      *string `json:"place_id" bson:"place_id,omitempty"`
	LikeCount    int64   `json:"like_count" bson:"like_count"`
	AuthorHandle string  `json:"author_handle" bson:"author_handle"`
}

// InsertSummary describes the outcome of one load.
type InsertSummary struct {
	Rows       int `json:"rows"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}
