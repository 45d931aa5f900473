package models

import (
	"bytes"
	"encoding/json"
)

// PageResult is one page of search results.
type PageResult struct {
	IDs          []ID
	LastPage     int
	HasMorePages bool
}

// Announcement is the nested detail record returned for one listing.
// Every group may be absent depending on the query and the listing.
type Announcement struct {
	ID               ID      `json:"id"`
	Reference        *string `json:"reference"`
	Title            *string `json:"title"`
	Slug             *string `json:"slug"`
	Description      *string `json:"description"`
	CreatedAt        *string `json:"createdAt"`
	Status           *string `json:"status"`
	StreetName       *string `json:"street_name"`
	Price            *Number `json:"price"`
	PricePreview     *Number `json:"pricePreview"`
	OldPrice         *Number `json:"oldPrice"`
	OldPricePreview  *Number `json:"oldPricePreview"`
	PriceType        *string `json:"priceType"`
	PriceUnit        *string `json:"priceUnit"`
	ExchangeType     *string `json:"exchangeType"`
	HasDelivery      *bool   `json:"hasDelivery"`
	DeliveryType     *string `json:"deliveryType"`
	HasPhone         *bool   `json:"hasPhone"`
	HasEmail         *bool   `json:"hasEmail"`
	Quantity         *Number `json:"quantity"`
	IsFromStore      *bool   `json:"isFromStore"`
	IsCommentEnabled *bool   `json:"isCommentEnabled"`
	NoAdsense        *bool   `json:"noAdsense"`
	OrderExternalURL *string `json:"orderExternalUrl"`
	MessengerLink    *string `json:"messengerLink"`
	ShowAnalytics    *bool   `json:"showAnalytics"`

	Category     *Category `json:"category"`
	User         *User     `json:"user"`
	Store        *Store    `json:"store"`
	Cities       []City    `json:"cities"`
	DefaultMedia *Media    `json:"defaultMedia"`
	Medias       []Media   `json:"medias"`
	Specs        []Spec    `json:"specs"`
	Variants     []Variant `json:"variants"`
}

type Category struct {
	ID   *ID     `json:"id"`
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

type User struct {
	ID          *ID     `json:"id"`
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

type Store struct {
	ID                 *ID     `json:"id"`
	Name               *string `json:"name"`
	Slug               *string `json:"slug"`
	Description        *string `json:"description"`
	ImageURL           *string `json:"imageUrl"`
	FollowerCount      *Number `json:"followerCount"`
	AnnouncementsCount *Number `json:"announcementsCount"`
	Status             *string `json:"status"`
}

type City struct {
	ID     *ID     `json:"id"`
	Name   *string `json:"name"`
	Region *Region `json:"region"`
}

type Region struct {
	ID   *ID     `json:"id"`
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

type Media struct {
	MediaURL  string  `json:"mediaUrl"`
	MimeType  *string `json:"mimeType"`
	Thumbnail *string `json:"thumbnail"`
}

type Spec struct {
	Specification *Specification `json:"specification"`
	ValueText     []string       `json:"valueText"`
}

type Specification struct {
	Label    string  `json:"label"`
	Codename *string `json:"codename"`
}

type Variant struct {
	ID ID `json:"id"`
}

// Label returns the specification label, or "" when the spec has none.
func (s Spec) Label() string {
	if s.Specification == nil {
		return ""
	}
	return s.Specification.Label
}

// Value returns the first text value of the spec, or nil.
func (s Spec) Value() any {
	if len(s.ValueText) == 0 {
		return nil
	}
	return s.ValueText[0]
}

// Number is a numeric field kept in its textual form. The API sends
// numbers, but some preview fields arrive quoted.
type Number string

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var raw json.Number
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = Number(raw.String())
	return nil
}

// Row is one flattened output record keyed by column name.
type Row map[string]any
