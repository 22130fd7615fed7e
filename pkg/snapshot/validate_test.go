package snapshot

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/planbridge/pkg/errors"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/valid.json")
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// mutate decodes the fixture into a generic map, applies fn and re-encodes it.
func mutate(t *testing.T, fn func(doc map[string]any)) []byte {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(readFixture(t), &doc); err != nil {
		t.Fatal(err)
	}
	fn(doc)
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func collection(doc map[string]any, name string) []any {
	return doc["data"].(map[string]any)[name].([]any)
}

func record(doc map[string]any, name string, i int) map[string]any {
	return collection(doc, name)[i].(map[string]any)
}

func TestValidateExportValid(t *testing.T) {
	snap, err := ValidateExport(readFixture(t))
	if err != nil {
		t.Fatalf("ValidateExport() error = %v", err)
	}

	if snap.Version != "1.0.0" {
		t.Errorf("Version = %q", snap.Version)
	}
	if snap.Timestamp.IsZero() {
		t.Error("Timestamp not parsed")
	}
	if got := snap.Data.Counts(); got["stories"] != 3 || got["aiPrompts"] != 1 {
		t.Errorf("Counts() = %v", got)
	}
	st := snap.Data.Stories[0]
	if st.StoryPoints == nil || *st.StoryPoints != 5 || st.ADOWorkItemID == nil || *st.ADOWorkItemID != 1042 {
		t.Errorf("numeric fields not decoded: %+v", st)
	}
	if snap.Data.Stories[1].Description != "" {
		t.Error("null description should decode as empty")
	}
}

func TestValidateExportSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		want   []string
	}{
		{
			name:   "missing workspace id",
			mutate: func(doc map[string]any) { delete(record(doc, "workspaces", 0), "id") },
			want:   []string{"data.workspaces[0].id: is required"},
		},
		{
			name:   "status out of range",
			mutate: func(doc map[string]any) { record(doc, "stories", 1)["status"] = "blocked" },
			want:   []string{`data.stories[1].status: must be one of [draft ready in_progress done archived], got "blocked"`},
		},
		{
			name:   "priority out of range",
			mutate: func(doc map[string]any) { record(doc, "stories", 0)["priority"] = "urgent" },
			want:   []string{"data.stories[0].priority: must be one of"},
		},
		{
			name:   "negative story points",
			mutate: func(doc map[string]any) { record(doc, "stories", 0)["story_points"] = -1 },
			want:   []string{"data.stories[0].story_points: must be at least 0"},
		},
		{
			name:   "template type",
			mutate: func(doc map[string]any) { record(doc, "templates", 0)["type"] = "bug" },
			want:   []string{"data.templates[0].type: must be one of"},
		},
		{
			name:   "mapping type",
			mutate: func(doc map[string]any) { record(doc, "fieldMappings", 0)["mapping_type"] = "regex" },
			want:   []string{"data.fieldMappings[0].mapping_type: must be one of"},
		},
		{
			name:   "sync direction",
			mutate: func(doc map[string]any) { record(doc, "configurations", 0)["sync_direction"] = "sideways" },
			want:   []string{"data.configurations[0].sync_direction: must be one of"},
		},
		{
			name:   "bad record timestamp",
			mutate: func(doc map[string]any) { record(doc, "workspaces", 0)["created_at"] = "yesterday" },
			want:   []string{`data.workspaces[0].created_at: must be an RFC 3339 timestamp, got "yesterday"`},
		},
		{
			name:   "missing collection",
			mutate: func(doc map[string]any) { delete(doc["data"].(map[string]any), "templates") },
			want:   []string{"data.templates: is required"},
		},
		{
			name:   "missing data",
			mutate: func(doc map[string]any) { delete(doc, "data") },
			want:   []string{"data: is required"},
		},
		{
			name:   "missing version and timestamp",
			mutate: func(doc map[string]any) { delete(doc, "version"); delete(doc, "timestamp") },
			want:   []string{"version: is required", "timestamp: is required"},
		},
		{
			name:   "incompatible version",
			mutate: func(doc map[string]any) { doc["version"] = "2.0.0" },
			want:   []string{`version: version "2.0.0" is not compatible with format 1.0.0`},
		},
		{
			name:   "version not semver",
			mutate: func(doc map[string]any) { doc["version"] = "latest" },
			want:   []string{"version: version \"latest\" is not compatible"},
		},
		{
			name:   "mistyped id",
			mutate: func(doc map[string]any) { record(doc, "stories", 0)["workspace_id"] = 7 },
			want:   []string{"data.stories.workspace_id: expected string, got number"},
		},
		{
			name:   "mistyped collection",
			mutate: func(doc map[string]any) { doc["data"].(map[string]any)["stories"] = "none" },
			want:   []string{"data.stories: expected array, got string"},
		},
		{
			name: "several problems at once",
			mutate: func(doc map[string]any) {
				record(doc, "stories", 0)["title"] = ""
				record(doc, "aiPrompts", 0)["prompt"] = nil
			},
			want: []string{"data.stories[0].title: is required", "data.aiPrompts[0].prompt: is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := ValidateExport(mutate(t, tt.mutate))
			if snap != nil {
				t.Error("ValidateExport() returned a snapshot on failure")
			}
			if !errors.Is(err, errors.ErrCodeSchema) {
				t.Fatalf("error code = %v, want %v (%v)", errors.GetCode(err), errors.ErrCodeSchema, err)
			}
			details := errors.Details(err)
			for _, want := range tt.want {
				if !containsPrefix(details, want) {
					t.Errorf("details %q missing %q", details, want)
				}
			}
		})
	}
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func TestValidateExportMalformed(t *testing.T) {
	for _, raw := range []string{"", "{", "not json", "[]", "null"} {
		snap, err := ValidateExport([]byte(raw))
		if snap != nil || !errors.Is(err, errors.ErrCodeSchema) {
			t.Errorf("ValidateExport(%q) = %v, %v; want schema error", raw, snap, err)
		}
	}
}

func TestValidateExportTrailingData(t *testing.T) {
	valid := readFixture(t)
	for name, raw := range map[string][]byte{
		"second object":   append(append([]byte{}, valid...), []byte(` {"x":1}`)...),
		"second snapshot": append(append([]byte{}, valid...), valid...),
		"garbage":         append(append([]byte{}, valid...), []byte(` x`)...),
	} {
		t.Run(name, func(t *testing.T) {
			snap, err := ValidateExport(raw)
			if snap != nil || !errors.Is(err, errors.ErrCodeSchema) {
				t.Fatalf("ValidateExport = %v, %v; want schema error", snap, err)
			}
			if !strings.Contains(strings.Join(errors.Details(err), "\n"), "trailing data") {
				t.Errorf("details = %q", errors.Details(err))
			}
			if res := ValidateImport(raw); res.Valid {
				t.Error("ValidateImport accepted trailing data")
			}
		})
	}

	padded := append(append([]byte{}, valid...), []byte("\n\n")...)
	if _, err := ValidateExport(padded); err != nil {
		t.Errorf("trailing whitespace rejected: %v", err)
	}
}

func TestValidateImportReferential(t *testing.T) {
	raw := mutate(t, func(doc map[string]any) {
		record(doc, "stories", 0)["workspace_id"] = "ws-missing"
		record(doc, "stories", 2)["workspace_id"] = "ws-gone"
	})

	res := ValidateImport(raw)
	if res.Valid {
		t.Fatal("Valid = true, want false")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("Errors = %q, want exactly 2", res.Errors)
	}
	if !strings.Contains(res.Errors[0], `"ws-missing"`) || !strings.Contains(res.Errors[1], `"ws-gone"`) {
		t.Errorf("Errors = %q", res.Errors)
	}
	if res.Data == nil || len(res.Data.Data.Stories) != 3 {
		t.Error("Data should carry the parsed snapshot")
	}
	if !errors.Is(res.Err(), errors.ErrCodeReferential) {
		t.Errorf("Err() code = %v", errors.GetCode(res.Err()))
	}
}

func TestValidateImportCollectsEveryCollection(t *testing.T) {
	raw := mutate(t, func(doc map[string]any) {
		for _, name := range []string{"stories", "configurations", "templates", "fieldMappings", "featureFlags", "aiPrompts"} {
			for _, r := range collection(doc, name) {
				r.(map[string]any)["workspace_id"] = "nowhere"
			}
		}
	})

	res := ValidateImport(raw)
	if res.Valid || len(res.Errors) != 8 {
		t.Errorf("got valid=%v errors=%d, want invalid with 8 errors: %q", res.Valid, len(res.Errors), res.Errors)
	}
}

func TestValidateImportSchemaFailure(t *testing.T) {
	raw := mutate(t, func(doc map[string]any) { delete(record(doc, "workspaces", 0), "name") })

	res := ValidateImport(raw)
	if res.Valid || res.Data != nil {
		t.Errorf("got valid=%v data=%v, want invalid without data", res.Valid, res.Data)
	}
	if !reflect.DeepEqual(res.Errors, []string{"data.workspaces[0].name: is required"}) {
		t.Errorf("Errors = %q", res.Errors)
	}
	if !errors.Is(res.Err(), errors.ErrCodeSchema) {
		t.Errorf("Err() code = %v", errors.GetCode(res.Err()))
	}

	if res := ValidateImport([]byte("{oops")); res.Valid || len(res.Errors) != 1 {
		t.Errorf("malformed input: %+v", res)
	}
}

func TestRoundTrip(t *testing.T) {
	snap, err := ValidateExport(readFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	res := ValidateImport(raw)
	if !res.Valid || len(res.Errors) != 0 {
		t.Fatalf("round trip invalid: %q", res.Errors)
	}
	if res.Errors == nil {
		t.Error("Errors should be an empty slice, not nil")
	}
	if !reflect.DeepEqual(res.Data.Data, snap.Data) {
		t.Error("round trip changed the data")
	}
}

func TestValidateInMemory(t *testing.T) {
	snap := New(Data{
		Workspaces: []Workspace{{ID: "ws-1", Name: "Payments"}},
		Stories:    []Story{{ID: "st-1", WorkspaceID: "ws-1", Title: "Checkout", Status: StatusDraft}},
	})
	if res := Validate(snap); !res.Valid {
		t.Fatalf("Validate(New(...)) = %q", res.Errors)
	}

	snap.Data.Stories = append(snap.Data.Stories, Story{ID: "st-2", WorkspaceID: "ws-9", Title: "Orphan", Status: StatusDone})
	if res := Validate(snap); res.Valid || len(res.Errors) != 1 {
		t.Errorf("referential: %+v", res)
	}

	snap.Data.Stories[0].Status = "wip"
	if res := Validate(snap); res.Valid || res.Data != nil {
		t.Errorf("schema: %+v", res)
	}

	if res := Validate(nil); res.Valid {
		t.Error("Validate(nil) should be invalid")
	}
	if res := Validate(&Snapshot{Version: "0.9.0"}); res.Valid {
		t.Error("zero snapshot should be invalid")
	}
}

func TestRedacted(t *testing.T) {
	snap, err := ValidateExport(readFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	red := snap.Data.Redacted()
	if red.Configurations[0].ADOAPIKey != "********" || red.Configurations[0].ProductBoardAPIKey != "" {
		t.Errorf("Redacted() = %+v", red.Configurations[0])
	}
	if snap.Data.Configurations[0].ADOAPIKey != "secret" {
		t.Error("Redacted() modified the original")
	}
}
