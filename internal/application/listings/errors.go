package listings

import "errors"

var ErrListingNotFound = errors.New("Listing not found")
