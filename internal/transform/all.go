package transform

import "classifieds-scraper/pkg/models"

var allColumns = []string{
	"id", "reference", "title", "slug", "description", "description_text", "creation_date",
	"status", "street_name", "created_at",
	"price", "price_preview", "old_price", "old_price_preview",
	"price_type", "price_unit", "exchange_type",
	"has_delivery", "delivery_type", "has_phone", "has_email", "quantity",
	"category_id", "category_name", "category_slug",
	"city", "city_id", "region", "region_id",
	"user_id", "username", "user_display_name", "avatar_url",
	"is_from_store", "store_id", "store_name", "store_slug",
	"store_description", "store_image_url", "store_follower_count",
	"store_announcements_count", "store_status",
	"default_media_url", "default_media_type", "media_count",
	"is_comment_enabled", "no_adsense", "external_url", "messenger_link",
	"show_analytics", "variants_count",
}

// AllTransformer maps every field of the full detail query, including the
// category, user, store, location and media groups.
type AllTransformer struct{}

func (AllTransformer) Columns() []string {
	return append([]string(nil), allColumns...)
}

func (AllTransformer) CollectSpecs(batch []*models.Announcement) []string {
	return collectSpecs(batch)
}

func (AllTransformer) Transform(a *models.Announcement, labels []string) (models.Row, error) {
	if a == nil {
		return nil, ErrEmptyRecord
	}

	row := models.Row{
		"id":                a.ID.String(),
		"reference":         str(a.Reference),
		"title":             str(a.Title),
		"slug":              str(a.Slug),
		"description":       str(a.Description),
		"description_text":  nil,
		"creation_date":     str(a.CreatedAt),
		"created_at":        str(a.CreatedAt),
		"status":            str(a.Status),
		"street_name":       str(a.StreetName),
		"price":             num(a.Price),
		"price_preview":     num(a.PricePreview),
		"old_price":         num(a.OldPrice),
		"old_price_preview": num(a.OldPricePreview),
		"price_type":        str(a.PriceType),
		"price_unit":        str(a.PriceUnit),
		"exchange_type":     str(a.ExchangeType),
		"has_delivery":      boolean(a.HasDelivery),
		"delivery_type":     str(a.DeliveryType),
		"has_phone":         boolean(a.HasPhone),
		"has_email":         boolean(a.HasEmail),
		"quantity":          num(a.Quantity),

		"category_id":   nil,
		"category_name": nil,
		"category_slug": nil,

		"city":      nil,
		"city_id":   nil,
		"region":    nil,
		"region_id": nil,

		"user_id":           nil,
		"username":          nil,
		"user_display_name": nil,
		"avatar_url":        nil,

		"is_from_store":             boolean(a.IsFromStore),
		"store_id":                  nil,
		"store_name":                nil,
		"store_slug":                nil,
		"store_description":         nil,
		"store_image_url":           nil,
		"store_follower_count":      nil,
		"store_announcements_count": nil,
		"store_status":              nil,

		"default_media_url":  nil,
		"default_media_type": nil,
		"media_count":        len(a.Medias),

		"is_comment_enabled": boolean(a.IsCommentEnabled),
		"no_adsense":         boolean(a.NoAdsense),
		"external_url":       str(a.OrderExternalURL),
		"messenger_link":     str(a.MessengerLink),
		"show_analytics":     boolean(a.ShowAnalytics),
		"variants_count":     len(a.Variants),
	}

	if a.Description != nil {
		row["description_text"] = PlainText(*a.Description)
	}

	if c := a.Category; c != nil {
		row["category_id"] = id(c.ID)
		row["category_name"] = str(c.Name)
		row["category_slug"] = str(c.Slug)
	}

	if len(a.Cities) > 0 {
		city := a.Cities[0]
		row["city"] = str(city.Name)
		row["city_id"] = id(city.ID)
		if r := city.Region; r != nil {
			row["region"] = str(r.Name)
			row["region_id"] = id(r.ID)
		}
	}

	if u := a.User; u != nil {
		row["user_id"] = id(u.ID)
		row["username"] = str(u.Username)
		row["user_display_name"] = str(u.DisplayName)
		row["avatar_url"] = str(u.AvatarURL)
	}

	if s := a.Store; s != nil {
		row["store_id"] = id(s.ID)
		row["store_name"] = str(s.Name)
		row["store_slug"] = str(s.Slug)
		row["store_description"] = str(s.Description)
		row["store_image_url"] = str(s.ImageURL)
		row["store_follower_count"] = num(s.FollowerCount)
		row["store_announcements_count"] = num(s.AnnouncementsCount)
		row["store_status"] = str(s.Status)
	}

	if m := a.DefaultMedia; m != nil {
		if m.MediaURL != "" {
			row["default_media_url"] = m.MediaURL
		}
		row["default_media_type"] = str(m.MimeType)
	}

	applySpecs(row, a, labels)
	return row, nil
}
