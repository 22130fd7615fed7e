package syncer

import (
	"fmt"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// settings is the sync-relevant configuration of one workspace.
type settings struct {
	areaPath      string
	iterationPath string
	mappings      []snapshot.FieldMapping
	skipped       []string
}

func newSettings(d snapshot.Data) (*settings, error) {
	s := &settings{skipped: []string{}}
	for _, c := range d.Configurations {
		if c.SyncDirection == snapshot.SyncADOToPB {
			return nil, errors.New(errors.ErrCodeUnsupported, "configuration %q syncs from Azure DevOps to ProductBoard", c.ID)
		}
		if c.AreaPath != "" {
			if err := errors.ValidatePath(c.AreaPath); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "configuration %q area path", c.ID)
			}
			s.areaPath = c.AreaPath
		}
		if c.IterationPath != "" {
			if err := errors.ValidatePath(c.IterationPath); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "configuration %q iteration path", c.ID)
			}
			s.iterationPath = c.IterationPath
		}
	}
	for _, m := range d.FieldMappings {
		if m.MappingType != snapshot.MappingDirect {
			s.skipped = append(s.skipped, fmt.Sprintf("field mapping %q (%s %s -> %s): only direct mappings are applied",
				m.ID, m.MappingType, m.ProductBoardField, m.ADOField))
			continue
		}
		s.mappings = append(s.mappings, m)
	}
	return s, nil
}

// fields returns the work item fields for a node: title, description, the
// configured paths, a source tag, then the direct field mappings.
func (s *settings) fields(n *hierarchy.Node) map[string]any {
	fields := map[string]any{
		azuredevops.FieldTitle: n.Name,
		azuredevops.FieldTags:  "productboard:" + n.ID,
	}
	if desc, ok := sourceValue(n, "description"); ok {
		fields[azuredevops.FieldDescription] = desc
	}
	if s.areaPath != "" {
		fields[azuredevops.FieldAreaPath] = s.areaPath
	}
	if s.iterationPath != "" {
		fields[azuredevops.FieldIteration] = s.iterationPath
	}
	for _, m := range s.mappings {
		if v, ok := sourceValue(n, m.ProductBoardField); ok {
			fields[m.ADOField] = v
		}
	}
	return fields
}

// sourceValue reads a ProductBoard field from a node.
func sourceValue(n *hierarchy.Node, field string) (any, bool) {
	switch field {
	case "id":
		return n.ID, true
	case "name", "title":
		return n.Name, true
	case "kind", "type":
		return n.Kind, n.Kind != ""
	}
	v, ok := n.Meta[field]
	if !ok || v == nil || v == "" {
		return nil, false
	}
	return v, true
}
