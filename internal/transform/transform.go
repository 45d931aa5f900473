// Package transform flattens nested listing records into output rows.
package transform

import (
	"errors"
	"fmt"
	"sort"

	"classifieds-scraper/internal/api"
	"classifieds-scraper/pkg/models"
)

// SpecPrefix prefixes every dynamic specification column.
const SpecPrefix = "spec_"

// ErrEmptyRecord is returned for a nil record.
var ErrEmptyRecord = errors.New("empty listing record")

// Transformer maps detail records onto one fixed schema.
type Transformer interface {
	// Columns is the fixed column order, without spec columns.
	Columns() []string
	// Transform flattens a record. Every label in labels gets a column,
	// null unless the record carries that spec.
	Transform(a *models.Announcement, labels []string) (models.Row, error)
	// CollectSpecs returns the sorted distinct spec labels of a batch.
	CollectSpecs(batch []*models.Announcement) []string
}

// Profile pairs a transformer with the detail query that feeds it.
type Profile struct {
	Mode        models.Mode
	Transformer Transformer
	DetailQuery string
}

// ProfileFor returns the profile of an extraction mode.
func ProfileFor(mode models.Mode) (Profile, error) {
	switch mode {
	case models.ModeAll:
		return Profile{Mode: mode, Transformer: AllTransformer{}, DetailQuery: api.QueryAll}, nil
	case models.ModeMini:
		return Profile{Mode: mode, Transformer: MiniTransformer{}, DetailQuery: api.QueryMini}, nil
	default:
		return Profile{}, fmt.Errorf("no transform profile for mode %s", mode)
	}
}

// SpecColumn names the column of a spec label.
func SpecColumn(label string) string { return SpecPrefix + label }

func collectSpecs(batch []*models.Announcement) []string {
	seen := make(map[string]struct{})
	for _, a := range batch {
		if a == nil {
			continue
		}
		for _, s := range a.Specs {
			if label := s.Label(); label != "" {
				seen[label] = struct{}{}
			}
		}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func applySpecs(row models.Row, a *models.Announcement, labels []string) {
	for _, l := range labels {
		row[SpecColumn(l)] = nil
	}
	for _, s := range a.Specs {
		if label := s.Label(); label != "" {
			row[SpecColumn(label)] = s.Value()
		}
	}
}

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func num(p *models.Number) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func boolean(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func id(p *models.ID) any {
	if p == nil {
		return nil
	}
	return p.String()
}
