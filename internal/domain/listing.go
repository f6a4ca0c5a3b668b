package domain

import "time"

// Listing statuses.
const (
	StatusDraft   = "draft"
	StatusActive  = "active"
	StatusPending = "pending"
	StatusSold    = "sold"
)

// ListingStatuses lists every valid status in lifecycle order.
var ListingStatuses = []string{StatusDraft, StatusActive, StatusPending, StatusSold}

// VehicleAttributes are the optional fields carried by vehicle listings.
type VehicleAttributes struct {
	Brand        *string `json:"brand,omitempty"`
	Model        *string `json:"model,omitempty"`
	Year         *int    `json:"year,omitempty"`
	Mileage      *int    `json:"mileage,omitempty"`
	FuelType     *string `json:"fuelType,omitempty"`
	Transmission *string `json:"transmission,omitempty"`
	Condition    *string `json:"condition,omitempty"`
	BodyType     *string `json:"bodyType,omitempty"`
	Color        *string `json:"color,omitempty"`
}

// Listing is the record stored under the "listings" key, indexed by ID.
type Listing struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Location    string    `json:"location"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Views       int       `json:"views"`
	VehicleAttributes
}

// ListingInput holds the caller-supplied fields of a new listing. ID, timestamps
// and the view counter are assigned by the repository.
type ListingInput struct {
	UserID      string   `json:"userId"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
	VehicleAttributes
}

// ListingPatch is a shallow partial update: every non-nil field replaces the
// stored value wholesale. Images is replaced as a whole sequence.
type ListingPatch struct {
	Category     *string   `json:"category,omitempty"`
	Status       *string   `json:"status,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Images       *[]string `json:"images,omitempty"`
	Brand        *string   `json:"brand,omitempty"`
	Model        *string   `json:"model,omitempty"`
	Year         *int      `json:"year,omitempty"`
	Mileage      *int      `json:"mileage,omitempty"`
	FuelType     *string   `json:"fuelType,omitempty"`
	Transmission *string   `json:"transmission,omitempty"`
	Condition    *string   `json:"condition,omitempty"`
	BodyType     *string   `json:"bodyType,omitempty"`
	Color        *string   `json:"color,omitempty"`
}

// Apply merges p over l field by field.
func (p ListingPatch) Apply(l *Listing) {
	setString(&l.Category, p.Category)
	setString(&l.Status, p.Status)
	setString(&l.Title, p.Title)
	setString(&l.Description, p.Description)
	setString(&l.Location, p.Location)
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Images != nil {
		l.Images = append([]string(nil), (*p.Images)...)
	}
	setOptional(&l.Brand, p.Brand)
	setOptional(&l.Model, p.Model)
	setOptional(&l.FuelType, p.FuelType)
	setOptional(&l.Transmission, p.Transmission)
	setOptional(&l.Condition, p.Condition)
	setOptional(&l.BodyType, p.BodyType)
	setOptional(&l.Color, p.Color)
	if p.Year != nil {
		v := *p.Year
		l.Year = &v
	}
	if p.Mileage != nil {
		v := *p.Mileage
		l.Mileage = &v
	}
}

// Empty reports whether the patch carries no field at all.
func (p ListingPatch) Empty() bool {
	return p == ListingPatch{}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setOptional(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}
