package models

import "time"

const (
	DefaultRateLimitWindow    = time.Minute
	DefaultRateLimitRetention = time.Hour
)

// RateLimitStats is a point-in-time view of a rate limit store
type RateLimitStats struct {
	Keys       int `json:"keys"`
	Timestamps int `json:"timestamps"`
}
