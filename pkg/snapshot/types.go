package snapshot

import "time"

// FormatVersion is the snapshot format written by this build. Documents are
// accepted when their version satisfies ^FormatVersion.
const FormatVersion = "1.0.0"

// Snapshot is a complete, versioned export of one or more workspaces.
type Snapshot struct {
	Version   string    `json:"version" validate:"required,compatible"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Data      Data      `json:"data"`
}

// New wraps data in a snapshot stamped with the current format version and
// UTC time.
func New(data Data) *Snapshot {
	return &Snapshot{
		Version:   FormatVersion,
		Timestamp: time.Now().UTC(),
		Data:      data.normalize(),
	}
}

// Data holds every collection in a snapshot.
type Data struct {
	Workspaces     []Workspace     `json:"workspaces" validate:"required,dive"`
	Stories        []Story         `json:"stories" validate:"required,dive"`
	Configurations []Configuration `json:"configurations" validate:"required,dive"`
	Templates      []Template      `json:"templates" validate:"required,dive"`
	FieldMappings  []FieldMapping  `json:"fieldMappings" validate:"required,dive"`
	FeatureFlags   []FeatureFlag   `json:"featureFlags,omitempty" validate:"dive"`
	AIPrompts      []AIPrompt      `json:"aiPrompts,omitempty" validate:"dive"`
}

func (d Data) normalize() Data {
	if d.Workspaces == nil {
		d.Workspaces = []Workspace{}
	}
	if d.Stories == nil {
		d.Stories = []Story{}
	}
	if d.Configurations == nil {
		d.Configurations = []Configuration{}
	}
	if d.Templates == nil {
		d.Templates = []Template{}
	}
	if d.FieldMappings == nil {
		d.FieldMappings = []FieldMapping{}
	}
	return d
}

// Counts returns the number of records per collection, keyed by JSON name.
func (d Data) Counts() map[string]int {
	return map[string]int{
		"workspaces":     len(d.Workspaces),
		"stories":        len(d.Stories),
		"configurations": len(d.Configurations),
		"templates":      len(d.Templates),
		"fieldMappings":  len(d.FieldMappings),
		"featureFlags":   len(d.FeatureFlags),
		"aiPrompts":      len(d.AIPrompts),
	}
}

// WorkspaceIDs returns the workspace ids in document order.
func (d Data) WorkspaceIDs() []string {
	ids := make([]string, len(d.Workspaces))
	for i, w := range d.Workspaces {
		ids[i] = w.ID
	}
	return ids
}

// Redacted returns a copy of d with integration secrets masked.
func (d Data) Redacted() Data {
	out := d
	out.Configurations = make([]Configuration, len(d.Configurations))
	for i, c := range d.Configurations {
		c.ProductBoardAPIKey = mask(c.ProductBoardAPIKey)
		c.ADOAPIKey = mask(c.ADOAPIKey)
		out.Configurations[i] = c
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// Workspace is the root record every other collection points to.
type Workspace struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" validate:"omitempty,timestamp"`
	UpdatedAt   string `json:"updated_at,omitempty" validate:"omitempty,timestamp"`
}

// Story statuses.
const (
	StatusDraft      = "draft"
	StatusReady      = "ready"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusArchived   = "archived"
)

// Story is a user story or feature tracked in a workspace. ParentID refers to
// another story in the same workspace.
type Story struct {
	ID                 string   `json:"id" validate:"required"`
	WorkspaceID        string   `json:"workspace_id" validate:"required"`
	Title              string   `json:"title" validate:"required"`
	Description        string   `json:"description,omitempty"`
	Status             string   `json:"status" validate:"required,oneof=draft ready in_progress done archived"`
	Priority           string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	ParentID           string   `json:"parent_id,omitempty"`
	ProductBoardID     string   `json:"productboard_id,omitempty"`
	ADOWorkItemID      *int     `json:"ado_work_item_id,omitempty"`
	StoryPoints        *float64 `json:"story_points,omitempty" validate:"omitempty,min=0"`
	AcceptanceCriteria string   `json:"acceptance_criteria,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty" validate:"omitempty,timestamp"`
	UpdatedAt          string   `json:"updated_at,omitempty" validate:"omitempty,timestamp"`
}

// Sync directions.
const (
	SyncPBToADO       = "pb_to_ado"
	SyncADOToPB       = "ado_to_pb"
	SyncBidirectional = "bidirectional"
)

// Configuration holds a workspace's integration settings.
type Configuration struct {
	ID                 string `json:"id" validate:"required"`
	WorkspaceID        string `json:"workspace_id" validate:"required"`
	ProductBoardAPIKey string `json:"productboard_api_key,omitempty"`
	ADOOrganization    string `json:"ado_organization,omitempty"`
	ADOProject         string `json:"ado_project,omitempty"`
	ADOAPIKey          string `json:"ado_api_key,omitempty"`
	AreaPath           string `json:"area_path,omitempty"`
	IterationPath      string `json:"iteration_path,omitempty"`
	SyncDirection      string `json:"sync_direction,omitempty" validate:"omitempty,oneof=pb_to_ado ado_to_pb bidirectional"`
}

// Template is a reusable work item body.
type Template struct {
	ID          string `json:"id" validate:"required"`
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=epic feature story task"`
	Content     string `json:"content,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

// Field mapping types.
const (
	MappingDirect    = "direct"
	MappingTransform = "transform"
	MappingLookup    = "lookup"
)

// FieldMapping maps a ProductBoard field onto an Azure DevOps field.
type FieldMapping struct {
	ID                  string `json:"id" validate:"required"`
	WorkspaceID         string `json:"workspace_id" validate:"required"`
	ProductBoardField   string `json:"productboard_field" validate:"required"`
	ADOField            string `json:"ado_field" validate:"required"`
	MappingType         string `json:"mapping_type" validate:"required,oneof=direct transform lookup"`
	TransformExpression string `json:"transform_expression,omitempty"`
}

// FeatureFlag toggles a workspace feature.
type FeatureFlag struct {
	ID          string `json:"id" validate:"required"`
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Key         string `json:"key" validate:"required"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

// AIPrompt is a stored prompt used for story generation.
type AIPrompt struct {
	ID          string `json:"id" validate:"required"`
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Prompt      string `json:"prompt" validate:"required"`
	Category    string `json:"category,omitempty"`
	IsActive    bool   `json:"is_active"`
}
