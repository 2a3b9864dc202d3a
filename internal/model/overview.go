package model

// Overview is the usage summary shown on the dashboard's current plan card.
type Overview struct {
	Plan         string  `json:"plan"`
	Usage        int64   `json:"usage"`
	RequestLimit int64   `json:"request_limit"`
	Percent      float64 `json:"percent"`
	Keys         int     `json:"keys"`
}
