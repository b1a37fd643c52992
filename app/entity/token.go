package entity

import "time"

type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidFor reports whether the token stays valid for at least margin after now.
func (t *AccessToken) ValidFor(now time.Time, margin time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return t.ExpiresAt.Sub(now) > margin
}
