package services

import (
	"github.com/swisscast/kaltura-migration/internal/models"
)

// Effect describes one category mutation without performing it. The
// real and dry-run paths share the same decision tree and diverge only
// at the point of performing versus recording an Effect.
type Effect struct {
	Op       string
	Category models.Category
}

// Overlay simulates the post-mutation state of categories during a dry
// run so later decisions in the same run see a consistent world. Never
// persisted; scoped to one run.
type Overlay map[int64]models.Category

// Apply records the post-state of an effect.
func (o Overlay) Apply(e Effect) {
	o[e.Category.ID] = e.Category
}

// Resolve returns the simulated state of a category when one exists,
// otherwise the category unchanged.
func (o Overlay) Resolve(c models.Category) models.Category {
	if simulated, ok := o[c.ID]; ok {
		return simulated
	}
	return c
}

// ResolveAll maps Resolve over a fetched set.
func (o Overlay) ResolveAll(categories []models.Category) []models.Category {
	out := make([]models.Category, len(categories))
	for i, c := range categories {
		out[i] = o.Resolve(c)
	}
	return out
}

// FindByFullName returns the simulated category occupying the given
// path, if any. Needed because remote lookups cannot see simulated
// moves.
func (o Overlay) FindByFullName(fullName string) (models.Category, bool) {
	for _, c := range o {
		if c.FullName == fullName {
			return c, true
		}
	}
	return models.Category{}, false
}
