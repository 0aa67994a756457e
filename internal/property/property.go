package property

import (
	"time"

	"estate-inbox/internal/validation"
)

type Type string

const (
	TypeApartment  Type = "apartment"
	TypeHouse      Type = "house"
	TypeCommercial Type = "commercial"
	TypeLand       Type = "land"
	TypeOffice     Type = "office"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusRented    Status = "rented"
)

type Image struct {
	URL          string `json:"url" binding:"required,url"`
	IsCoverImage bool   `json:"isCoverImage"`
}

type Property struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	PropertyType Type      `json:"propertyType"`
	Status       Status    `json:"status"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	UnitNumber   string    `json:"unitNumber,omitempty"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    int       `json:"bathrooms"`
	AreaSqm      float64   `json:"areaSqm,omitempty"`
	Images       []Image   `json:"images"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Cover returns the cover image, or the first image when none is flagged.
func (p Property) Cover() (Image, bool) {
	for _, img := range p.Images {
		if img.IsCoverImage {
			return img, true
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0], true
	}
	return Image{}, false
}

// Form is the create/edit payload.
type Form struct {
	Title        string  `json:"title" binding:"required,min=3,max=200"`
	Description  string  `json:"description" binding:"max=5000"`
	Price        float64 `json:"price" binding:"required,gt=0"`
	Currency     string  `json:"currency" binding:"required,iso4217"`
	PropertyType Type    `json:"propertyType" binding:"required,oneof=apartment house commercial land office"`
	Status       Status  `json:"status" binding:"omitempty,oneof=available reserved sold rented"`
	Address      string  `json:"address" binding:"required,max=300"`
	City         string  `json:"city" binding:"required,max=120"`
	UnitNumber   string  `json:"unitNumber" binding:"max=20"`
	Bedrooms     int     `json:"bedrooms" binding:"gte=0,lte=50"`
	Bathrooms    int     `json:"bathrooms" binding:"gte=0,lte=50"`
	AreaSqm      float64 `json:"areaSqm" binding:"omitempty,gt=0"`
	Images       []Image `json:"images" binding:"max=30,dive"`
}

// Validate checks the binding tags and that at most one image is the cover.
func (f Form) Validate() error {
	if err := validation.Struct(f); err != nil {
		return err
	}
	covers := 0
	for _, img := range f.Images {
		if img.IsCoverImage {
			covers++
		}
	}
	if covers > 1 {
		return validation.Errors{{Field: "images", Rule: "cover", Message: "only one image can be the cover"}}
	}
	return nil
}
