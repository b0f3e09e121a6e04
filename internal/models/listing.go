package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Attribute labels used for the details of a published listing.
const (
	LabelBrand     = "MARQUE"
	LabelSize      = "TAILLE"
	LabelCondition = "ETAT"
	LabelColor     = "COULEUR"
	LabelLocation  = "EMPLACEMENT"
)

// Attribute is a single label/value detail of a listing. On the wire it is
// rendered as a one-key object, e.g. {"MARQUE": "Nike"}.
type Attribute struct {
	Label string `bson:"label"`
	Value string `bson:"value"`
}

func (a Attribute) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{a.Label: a.Value})
}

func (a *Attribute) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("attribute must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		a.Label, a.Value = k, v
	}
	return nil
}

// Listing represents an item offered for sale.
type Listing struct {
	ID          string      `json:"_id" bson:"_id,omitempty" gorm:"primaryKey;column:id;type:varchar(36)"`
	Title       string      `json:"product_name" bson:"product_name" gorm:"column:product_name;type:varchar(50)"`
	Description string      `json:"product_description" bson:"product_description" gorm:"column:product_description;type:varchar(500)"`
	Price       float64     `json:"product_price" bson:"product_price" gorm:"column:product_price;index"`
	Details     []Attribute `json:"product_details" bson:"product_details" gorm:"column:product_details;type:text;serializer:json"`
	Images      []string    `json:"product_image" bson:"product_image" gorm:"column:product_image;type:text;serializer:json"`
	Owner       string      `json:"owner" bson:"owner" gorm:"column:owner;index;type:varchar(36)"`
	Sold        bool        `json:"sold" bson:"sold" gorm:"column:sold"`
	SoldTo      string      `json:"sold_to,omitempty" bson:"sold_to,omitempty" gorm:"column:sold_to;type:varchar(36)"`
	Version     int         `json:"__v" bson:"__v" gorm:"column:version"`

	CreatedAt time.Time `json:"-" bson:"created_at"`
	UpdatedAt time.Time `json:"-" bson:"updated_at"`
}

// Value returns the value stored under a document field name, or nil when the
// field is not addressable.
func (l *Listing) Value(field string) any {
	switch field {
	case "_id":
		return l.ID
	case "product_name":
		return l.Title
	case "product_description":
		return l.Description
	case "product_price":
		return l.Price
	case "owner":
		return l.Owner
	case "sold":
		return l.Sold
	case "sold_to":
		return l.SoldTo
	}
	return nil
}
