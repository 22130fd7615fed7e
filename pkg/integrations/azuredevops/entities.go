package azuredevops

import (
	"context"
	"strconv"
	"strings"

	"github.com/matzehuels/planbridge/pkg/hierarchy"
)

// ToEntities converts work items into hierarchy entities. The entity kind is
// the lower-cased work item type with spaces replaced by underscores, e.g.
// "user_story".
func ToEntities(items []WorkItem) []hierarchy.Entity {
	entities := make([]hierarchy.Entity, 0, len(items))
	for i := range items {
		w := &items[i]
		e := hierarchy.Entity{
			ID:   strconv.Itoa(w.ID),
			Name: w.Title(),
			Kind: KindOf(w.Type()),
			Meta: hierarchy.Metadata{"ado_work_item_id": w.ID},
		}
		if p := w.ParentID(); p > 0 {
			e.ParentID = strconv.Itoa(p)
		}
		if s := w.State(); s != "" {
			e.Meta["state"] = s
		}
		if tags := w.Tags(); len(tags) > 0 {
			e.Meta["tags"] = tags
		}
		entities = append(entities, e)
	}
	return entities
}

// KindOf converts a work item type name into an entity kind.
func KindOf(workItemType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(workItemType)), " ", "_")
}

// hierarchyQuery selects every live work item of the client's project.
const hierarchyQuery = "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [System.State] <> 'Removed' ORDER BY [System.Id]"

// FetchHierarchy reads all work items of the project as hierarchy entities.
func (c *Client) FetchHierarchy(ctx context.Context) ([]hierarchy.Entity, error) {
	ids, err := c.QueryWorkItems(ctx, hierarchyQuery)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []hierarchy.Entity{}, nil
	}
	items, err := c.GetWorkItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	return ToEntities(items), nil
}
