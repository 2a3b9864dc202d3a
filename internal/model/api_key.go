package model

// APIKey is a row of the api_key table.
type APIKey struct {
	ID           string `db:"id"            json:"id"`
	Name         string `db:"name"          json:"name"`
	Value        string `db:"value"         json:"value"`
	Usage        int64  `db:"usage"         json:"usage"`
	RequestLimit int64  `db:"request_limit" json:"request_limit"`
	UserID       string `db:"user_id"       json:"user_id"`
}

// Exhausted reports whether the key has used up its request limit.
func (k APIKey) Exhausted() bool {
	return k.Usage >= k.RequestLimit
}
