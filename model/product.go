package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrValidation       = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("product not found")
	ErrConflict         = errors.New("product already sold")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Product is the only persisted entity. Price is in the smallest currency unit.
type Product struct {
	ID          string    `json:"id" db:"id" bson:"-"`
	Name        string    `json:"name" db:"name" bson:"name"`
	Price       int64     `json:"price" db:"price" bson:"price"`
	Description string    `json:"description" db:"description" bson:"description"`
	ImageURL    string    `json:"image_url" db:"image_url" bson:"image_url"`
	Available   bool      `json:"available" db:"available" bson:"available"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
}

// NewProduct carries the client-supplied fields of a product creation.
type NewProduct struct {
	Name        string
	Price       int64
	Description string
	ImageURL    string
}

// Validate reports the first missing or malformed field as ErrValidation.
func (p NewProduct) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Wrap(ErrValidation, "name is required")
	case p.Price <= 0:
		return errors.Wrap(ErrValidation, "price must be a positive integer")
	case strings.TrimSpace(p.Description) == "":
		return errors.Wrap(ErrValidation, "description is required")
	case strings.TrimSpace(p.ImageURL) == "":
		return errors.Wrap(ErrValidation, "image_url is required")
	}
	return nil
}
