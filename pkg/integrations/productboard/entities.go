package productboard

import (
	"github.com/matzehuels/planbridge/pkg/hierarchy"
)

// Entity kinds produced by [Catalog.Entities].
const (
	KindProduct    = "product"
	KindComponent  = "component"
	KindFeature    = "feature"
	KindSubfeature = "subfeature"
	KindInitiative = "initiative"
)

// Catalog is everything fetched from one ProductBoard workspace.
type Catalog struct {
	Products    []Product
	Components  []Component
	Features    []Feature
	Initiatives []Initiative
}

// Entities converts the catalog into hierarchy entities. See [ToEntities].
func (c *Catalog) Entities() ([]hierarchy.Entity, error) {
	return ToEntities(c.Products, c.Components, c.Features, c.Initiatives)
}

// ToEntities converts ProductBoard records into hierarchy entities in the
// order products, initiatives, components, features. Archived features are
// skipped. A feature linked to an initiative carries the initiative's id in
// Meta["initiative_id"] and keeps its structural parent.
func ToEntities(products []Product, components []Component, features []Feature, initiatives []Initiative) ([]hierarchy.Entity, error) {
	entities := make([]hierarchy.Entity, 0, len(products)+len(components)+len(features)+len(initiatives))

	for _, p := range products {
		entities = append(entities, hierarchy.Entity{
			ID:   p.ID,
			Name: p.Name,
			Kind: KindProduct,
			Meta: linkMeta(p.Links, nil),
		})
	}

	linked := make(map[string]string)
	for _, in := range initiatives {
		for _, id := range in.FeatureIDs {
			if _, ok := linked[id]; !ok {
				linked[id] = in.ID
			}
		}
		entities = append(entities, hierarchy.Entity{
			ID:   in.ID,
			Name: in.Name,
			Kind: KindInitiative,
			Meta: linkMeta(in.Links, statusMeta(in.Status)),
		})
	}

	for _, comp := range components {
		parent, err := ParseParent(comp.Parent)
		if err != nil {
			return nil, err
		}
		entities = append(entities, hierarchy.Entity{
			ID:       comp.ID,
			Name:     comp.Name,
			ParentID: parent.ID,
			Kind:     KindComponent,
			Meta:     linkMeta(comp.Links, nil),
		})
	}

	for _, f := range features {
		if f.Archived {
			continue
		}
		parent, err := ParseParent(f.Parent)
		if err != nil {
			return nil, err
		}
		kind := KindFeature
		if f.Type == TypeSubfeature {
			kind = KindSubfeature
		}
		meta := statusMeta(f.Status)
		if f.Description != "" {
			meta["description"] = f.Description
		}
		if in, ok := linked[f.ID]; ok {
			meta["initiative_id"] = in
		}
		entities = append(entities, hierarchy.Entity{
			ID:       f.ID,
			Name:     f.Name,
			ParentID: parent.ID,
			Kind:     kind,
			Meta:     linkMeta(f.Links, meta),
		})
	}
	return entities, nil
}

func statusMeta(s Status) hierarchy.Metadata {
	meta := hierarchy.Metadata{}
	if s.Name != "" {
		meta["status"] = s.Name
	}
	return meta
}

func linkMeta(l Links, meta hierarchy.Metadata) hierarchy.Metadata {
	if l.HTML == "" {
		if len(meta) == 0 {
			return nil
		}
		return meta
	}
	if meta == nil {
		meta = hierarchy.Metadata{}
	}
	meta["url"] = l.HTML
	return meta
}
