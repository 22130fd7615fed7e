package productboard

import "encoding/json"

// Status is the workflow status of a feature or initiative.
type Status struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Links holds the self and browser links of a resource.
type Links struct {
	Self string `json:"self,omitempty"`
	HTML string `json:"html,omitempty"`
}

// Product is a top-level ProductBoard product.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Links       Links  `json:"links"`
}

// Component groups features inside a product or another component.
type Component struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parent      json.RawMessage `json:"parent,omitempty"`
	Links       Links           `json:"links"`
}

// Feature is a feature or subfeature.
type Feature struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type"`
	Archived    bool            `json:"archived,omitempty"`
	Status      Status          `json:"status"`
	Parent      json.RawMessage `json:"parent,omitempty"`
	Links       Links           `json:"links"`
}

// Initiative is a cross-product objective that features link to.
type Initiative struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Links       Links  `json:"links"`

	// FeatureIDs is filled by [Client.FetchHierarchy] from the initiative's
	// feature links.
	FeatureIDs []string `json:"feature_ids,omitempty"`
}

// Feature types.
const (
	TypeFeature    = "feature"
	TypeSubfeature = "subfeature"
)
