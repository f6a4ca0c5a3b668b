package validation

import (
	"net/url"
	"regexp"
	"strings"

	"motorhub-backend/internal/domain"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxTitleLen   = 120
	maxContentLen = 4000
	maxImages     = 20
	minYear       = 1886
	maxYear       = 2100
)

// FieldErrors maps a JSON field name to what is wrong with it. It is returned
// as the details of a 400 response.
type FieldErrors map[string]string

func (f FieldErrors) Empty() bool { return len(f) == 0 }

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 6 characters, matching the sign-up form.
func IsValidPassword(password string) bool {
	return len(password) >= 6
}

func IsValidName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= 100
}

func IsValidStatus(status string) bool {
	for _, s := range domain.ListingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ListingInput checks a new listing. UserID is set by the caller.
func ListingInput(in domain.ListingInput) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(in.Title) == "" {
		errs["title"] = "is required"
	}
	if strings.TrimSpace(in.Category) == "" {
		errs["category"] = "is required"
	}
	if in.Status != "" && !IsValidStatus(in.Status) {
		errs["status"] = "must be one of draft, active, pending, sold"
	}
	checkCommon(errs, &in.Title, &in.Price, &in.Images, in.Year, in.Mileage)
	return errs
}

// ListingPatch checks the fields present in a partial update.
func ListingPatch(p domain.ListingPatch) FieldErrors {
	errs := FieldErrors{}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs["title"] = "must not be empty"
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		errs["category"] = "must not be empty"
	}
	if p.Status != nil && !IsValidStatus(*p.Status) {
		errs["status"] = "must be one of draft, active, pending, sold"
	}
	checkCommon(errs, p.Title, p.Price, p.Images, p.Year, p.Mileage)
	return errs
}

func checkCommon(errs FieldErrors, title *string, price *float64, images *[]string, year, mileage *int) {
	if title != nil && len(*title) > maxTitleLen {
		errs["title"] = "is too long"
	}
	if price != nil && *price < 0 {
		errs["price"] = "must not be negative"
	}
	if images != nil {
		if len(*images) > maxImages {
			errs["images"] = "too many images"
		}
		for _, img := range *images {
			if !isImageURL(img) {
				errs["images"] = "must be http(s) or data URLs"
				break
			}
		}
	}
	if year != nil && (*year < minYear || *year > maxYear) {
		errs["year"] = "is out of range"
	}
	if mileage != nil && *mileage < 0 {
		errs["mileage"] = "must not be negative"
	}
}

func isImageURL(s string) bool {
	if strings.HasPrefix(s, "data:image/") {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MessageContent reports whether content can be sent.
func MessageContent(content string) bool {
	content = strings.TrimSpace(content)
	return content != "" && len(content) <= maxContentLen
}
