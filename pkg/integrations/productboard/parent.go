package productboard

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// ParentKind names the kind of resource a parent reference points at.
type ParentKind string

const (
	ParentFeature    ParentKind = "feature"
	ParentComponent  ParentKind = "component"
	ParentProduct    ParentKind = "product"
	ParentInitiative ParentKind = "initiative"
)

var parentKinds = []ParentKind{ParentFeature, ParentComponent, ParentProduct, ParentInitiative}

// ParentRef is a resolved parent reference.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   string     `json:"id"`
}

// IsZero reports whether the reference is empty, i.e. the resource has no parent.
func (p ParentRef) IsZero() bool { return p.ID == "" }

// ParseParent resolves a raw parent field. ProductBoard encodes parents as
// {"<kind>": {"id": ...}}; the older flat form {"id": ..., "type": ...} is
// accepted too. Null, empty and missing parents yield a zero ParentRef.
func ParseParent(raw json.RawMessage) (ParentRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ParentRef{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ParentRef{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse parent")
	}
	if len(fields) == 0 {
		return ParentRef{}, nil
	}

	for _, kind := range parentKinds {
		v, ok := fields[string(kind)]
		if !ok {
			continue
		}
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(v, &ref); err != nil || ref.ID == "" {
			return ParentRef{}, errors.New(errors.ErrCodeInvalidFormat, "parse parent: %s reference without id", kind)
		}
		return ParentRef{Kind: kind, ID: ref.ID}, nil
	}

	var flat struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if json.Unmarshal(raw, &flat) == nil && flat.ID != "" {
		for _, kind := range parentKinds {
			if string(kind) == flat.Type {
				return ParentRef{Kind: kind, ID: flat.ID}, nil
			}
		}
	}
	return ParentRef{}, errors.New(errors.ErrCodeInvalidFormat, "parse parent: unrecognised parent %s", raw)
}
