package snapshot

import "github.com/matzehuels/planbridge/pkg/hierarchy"

// KindStory is the hierarchy kind of a workspace story.
const KindStory = "story"

// StoryEntities converts stories into hierarchy entities linked by ParentID.
// Status, priority and the external ids are carried in Meta.
func StoryEntities(stories []Story) []hierarchy.Entity {
	out := make([]hierarchy.Entity, len(stories))
	for i, s := range stories {
		meta := hierarchy.Metadata{"status": s.Status}
		if s.Priority != "" {
			meta["priority"] = s.Priority
		}
		if s.ProductBoardID != "" {
			meta["productboard_id"] = s.ProductBoardID
		}
		if s.ADOWorkItemID != nil {
			meta["ado_work_item_id"] = *s.ADOWorkItemID
		}
		if s.StoryPoints != nil {
			meta["story_points"] = *s.StoryPoints
		}
		out[i] = hierarchy.Entity{
			ID:       s.ID,
			Name:     s.Title,
			ParentID: s.ParentID,
			Kind:     KindStory,
			Meta:     meta,
		}
	}
	return out
}
