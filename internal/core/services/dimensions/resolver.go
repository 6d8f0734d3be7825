// Package dimensions resolves batch vendor, product and CVSS-source names
// against persisted dimension state. Existing keys keep their IDs forever;
// new keys get IDs above the persisted maximum, so identities stay stable
// across incremental runs.
package dimensions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

// Resolver merges one batch against the persisted dimensions.
type Resolver struct {
	state ports.DimensionState
}

func NewResolver(state ports.DimensionState) *Resolver {
	return &Resolver{state: state}
}

// ProductResolution is the outcome of resolving a batch of product
// candidates: the dimension rows that did not exist yet, in first-seen order,
// plus one bridge row per candidate occurrence. ExistingVendors and
// ExistingProducts count the distinct batch identities that were already
// persisted and therefore never reach the loader.
type ProductResolution struct {
	NewVendors  []domain.Vendor
	NewProducts []domain.Product
	Bridge      []domain.BridgeCveProduct

	ExistingVendors  int
	ExistingProducts int
}

// SourceResolution maps batch reporting-source names onto the source
// dimension: a complete name-to-ID index, the rows that did not exist yet,
// and the count of distinct batch names that were already persisted.
type SourceResolution struct {
	Index    map[string]int64
	NewRows  []domain.CvssSource
	Existing int
}

// ResolveSources maps reporting-source names to source IDs. The returned
// index covers persisted and new sources; new rows are returned separately
// for loading. Names are matched case-sensitively.
func (r *Resolver) ResolveSources(ctx context.Context, names []string) (SourceResolution, error) {
	var res SourceResolution

	persisted, err := r.state.SourceIndex(ctx)
	if err != nil {
		return res, fmt.Errorf("loading source index: %w", err)
	}

	res.Index = make(map[string]int64, len(persisted)+len(names))
	next := int64(1)
	for name, id := range persisted {
		res.Index[name] = id
		if id >= next {
			next = id + 1
		}
	}

	counted := map[string]struct{}{}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := persisted[name]; ok {
			if _, dup := counted[name]; !dup {
				counted[name] = struct{}{}
				res.Existing++
			}
			continue
		}
		if _, ok := res.Index[name]; ok {
			continue
		}
		res.Index[name] = next
		res.NewRows = append(res.NewRows, domain.CvssSource{SourceID: next, SourceName: name})
		next++
	}
	return res, nil
}

// ResolveProducts resolves vendor and product identities for a batch of
// candidates. Vendor identity is the lowercased trimmed name and the
// first-seen casing is the one stored; product identity additionally scopes
// by vendor. Aggregate date bounds on new rows are seeded from the batch and
// later recomputed by the warehouse refresh.
func (r *Resolver) ResolveProducts(ctx context.Context, candidates []domain.ProductCandidate) (ProductResolution, error) {
	var res ProductResolution

	vendorIdx, err := r.state.VendorIndex(ctx)
	if err != nil {
		return res, fmt.Errorf("loading vendor index: %w", err)
	}
	productIdx, err := r.state.ProductIndex(ctx)
	if err != nil {
		return res, fmt.Errorf("loading product index: %w", err)
	}

	nextVendor := int64(1)
	for _, v := range vendorIdx {
		if v.VendorID >= nextVendor {
			nextVendor = v.VendorID + 1
		}
	}
	nextProduct := int64(1)
	for _, p := range productIdx {
		if p.ProductID >= nextProduct {
			nextProduct = p.ProductID + 1
		}
	}

	newVendors := map[string]*domain.Vendor{}
	newProducts := map[domain.ProductKey]*domain.Product{}
	var vendorOrder []string
	var productOrder []domain.ProductKey
	seenVendors := map[string]struct{}{}
	seenProducts := map[domain.ProductKey]struct{}{}

	for _, c := range candidates {
		vkey := strings.ToLower(c.Vendor)

		var vendorID int64
		if v, ok := vendorIdx[vkey]; ok {
			vendorID = v.VendorID
			if _, dup := seenVendors[vkey]; !dup {
				seenVendors[vkey] = struct{}{}
				res.ExistingVendors++
			}
		} else if v, ok := newVendors[vkey]; ok {
			vendorID = v.VendorID
			growDateBounds(&v.FirstCveDate, &v.LastCveDate, c.Published)
		} else {
			nv := &domain.Vendor{VendorID: nextVendor, VendorName: c.Vendor}
			growDateBounds(&nv.FirstCveDate, &nv.LastCveDate, c.Published)
			nextVendor++
			newVendors[vkey] = nv
			vendorOrder = append(vendorOrder, vkey)
			vendorID = nv.VendorID
		}

		pkey := domain.ProductKey{Vendor: vkey, Product: strings.ToLower(c.Product)}

		var productID int64
		if p, ok := productIdx[pkey]; ok {
			productID = p.ProductID
			if _, dup := seenProducts[pkey]; !dup {
				seenProducts[pkey] = struct{}{}
				res.ExistingProducts++
			}
		} else if p, ok := newProducts[pkey]; ok {
			productID = p.ProductID
			growDateBounds(&p.FirstCveDate, &p.LastCveDate, c.Published)
		} else {
			np := &domain.Product{ProductID: nextProduct, VendorID: vendorID, ProductName: c.Product}
			growDateBounds(&np.FirstCveDate, &np.LastCveDate, c.Published)
			nextProduct++
			newProducts[pkey] = np
			productOrder = append(productOrder, pkey)
			productID = np.ProductID
		}

		res.Bridge = append(res.Bridge, domain.BridgeCveProduct{
			CveID:     c.CveID,
			ProductID: productID,
		})
	}

	for _, vkey := range vendorOrder {
		res.NewVendors = append(res.NewVendors, *newVendors[vkey])
	}
	for _, pkey := range productOrder {
		res.NewProducts = append(res.NewProducts, *newProducts[pkey])
	}
	return res, nil
}

func growDateBounds(first, last *time.Time, t time.Time) {
	if t.IsZero() {
		return
	}
	if first.IsZero() || t.Before(*first) {
		*first = t
	}
	if last.IsZero() || t.After(*last) {
		*last = t
	}
}
