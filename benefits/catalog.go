package benefits

import (
	"context"
	"fmt"
)

// Catalog loads the authoritative definitions for a selection.
type Catalog struct {
	Store CatalogStore
}

// LoadSelected returns one active definition per entry of ids, in the same
// order. Repeated IDs yield repeated definitions: each entry is its own
// issuance attempt. Any selected ID that is unknown or inactive fails the
// whole selection with *CatalogMismatchError; a storage failure returns
// ErrCatalogUnavailable.
func (c *Catalog) LoadSelected(ctx context.Context, ids []BenefitID) ([]BenefitDefinition, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	distinct := make([]BenefitID, 0, len(ids))
	seen := make(map[BenefitID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}

	defs, err := c.Store.ListBenefits(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	active := make(map[BenefitID]BenefitDefinition, len(defs))
	for _, d := range defs {
		if d.Active {
			active[d.ID] = d
		}
	}

	var missing []BenefitID
	for _, id := range distinct {
		if _, ok := active[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &CatalogMismatchError{Requested: distinct, Missing: missing}
	}

	selected := make([]BenefitDefinition, len(ids))
	for i, id := range ids {
		selected[i] = active[id]
	}
	return selected, nil
}
