package transform

import "classifieds-scraper/pkg/models"

var miniColumns = []string{"id", "reference", "title", "description", "price_preview", "created_at", "city", "price_unit"}

// MiniTransformer keeps the essential product fields.
type MiniTransformer struct{}

func (MiniTransformer) Columns() []string {
	return append([]string(nil), miniColumns...)
}

func (MiniTransformer) CollectSpecs(batch []*models.Announcement) []string {
	return collectSpecs(batch)
}

func (MiniTransformer) Transform(a *models.Announcement, labels []string) (models.Row, error) {
	if a == nil {
		return nil, ErrEmptyRecord
	}

	row := models.Row{
		"id":            a.ID.String(),
		"reference":     str(a.Reference),
		"title":         str(a.Title),
		"description":   str(a.Description),
		"price_preview": num(a.PricePreview),
		"created_at":    str(a.CreatedAt),
		"price_unit":    str(a.PriceUnit),
		"city":          nil,
	}
	if len(a.Cities) > 0 {
		row["city"] = str(a.Cities[0].Name)
	}

	applySpecs(row, a, labels)
	return row, nil
}
