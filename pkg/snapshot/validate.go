package snapshot

import (
	"fmt"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// Result is the outcome of an import validation. Data is nil only when the
// document failed schema validation.
type Result struct {
	Valid  bool      `json:"valid"`
	Errors []string  `json:"errors"`
	Data   *Snapshot `json:"data"`
}

// Err converts an invalid result into an error carrying every violation as a
// detail. It returns nil for a valid result.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	code := errors.ErrCodeReferential
	msg := "snapshot references unknown workspaces: %d problem(s)"
	if r.Data == nil {
		code = errors.ErrCodeSchema
		msg = "snapshot failed schema validation: %d problem(s)"
	}
	return errors.New(code, msg, len(r.Errors)).WithDetails(r.Errors...)
}

// ValidateImport validates raw for import. It never fails: schema violations
// yield an invalid result without data, referential violations an invalid
// result with the parsed snapshot, and every violation is listed.
func ValidateImport(raw []byte) Result {
	snap, err := ValidateExport(raw)
	if err != nil {
		return schemaResult(err)
	}
	return referentialResult(snap)
}

// Validate applies the schema and referential checks to an in-memory
// snapshot, typically right before it is exported.
func Validate(s *Snapshot) Result {
	if err := checkSchema(s); err != nil {
		return schemaResult(err)
	}
	return referentialResult(s)
}

func schemaResult(err error) Result {
	msgs := errors.Details(err)
	if len(msgs) == 0 {
		msgs = []string{errors.UserMessage(err)}
	}
	return Result{Valid: false, Errors: msgs}
}

func referentialResult(s *Snapshot) Result {
	errs := CheckReferences(s.Data)
	return Result{Valid: len(errs) == 0, Errors: errs, Data: s}
}

// CheckReferences returns one message per record whose workspace_id does not
// name a workspace in d. The result is empty, never nil, when d is consistent.
func CheckReferences(d Data) []string {
	known := make(map[string]bool, len(d.Workspaces))
	for _, w := range d.Workspaces {
		known[w.ID] = true
	}

	errs := []string{}
	check := func(kind, id, label, workspaceID string) {
		if known[workspaceID] {
			return
		}
		if label != "" {
			errs = append(errs, fmt.Sprintf("%s %q (%s) references non-existent workspace %q", kind, id, label, workspaceID))
			return
		}
		errs = append(errs, fmt.Sprintf("%s %q references non-existent workspace %q", kind, id, workspaceID))
	}

	for _, s := range d.Stories {
		check("story", s.ID, s.Title, s.WorkspaceID)
	}
	for _, c := range d.Configurations {
		check("configuration", c.ID, "", c.WorkspaceID)
	}
	for _, t := range d.Templates {
		check("template", t.ID, t.Name, t.WorkspaceID)
	}
	for _, m := range d.FieldMappings {
		check("field mapping", m.ID, m.ProductBoardField+" -> "+m.ADOField, m.WorkspaceID)
	}
	for _, f := range d.FeatureFlags {
		check("feature flag", f.ID, f.Key, f.WorkspaceID)
	}
	for _, p := range d.AIPrompts {
		check("AI prompt", p.ID, p.Name, p.WorkspaceID)
	}
	return errs
}
