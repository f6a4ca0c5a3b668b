package domain

import "time"

// Favorite is one element of the "favorites" sequence. The (UserID, ListingID)
// pair is unique.
type Favorite struct {
	UserID    string    `json:"userId"`
	ListingID string    `json:"listingId"`
	CreatedAt time.Time `json:"createdAt"`
}
