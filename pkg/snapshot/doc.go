// Package snapshot defines the versioned import/export document for a
// workspace's planning data and the validator that guards both directions.
//
// # Format
//
// A snapshot is a JSON (or YAML) object:
//
//	{
//	  "version": "1.0.0",
//	  "timestamp": "2025-03-01T12:00:00Z",
//	  "data": {
//	    "workspaces": [...], "stories": [...], "configurations": [...],
//	    "templates": [...], "fieldMappings": [...],
//	    "featureFlags": [...], "aiPrompts": [...]
//	  }
//	}
//
// featureFlags and aiPrompts are optional. Every record outside workspaces
// carries a workspace_id that must name a workspace in the same document.
//
// # Validation
//
// Validation has two tiers:
//
//   - Schema: [ValidateExport] checks field presence, types, enum ranges and
//     version compatibility. It is all-or-nothing and fails with an
//     [errors.ErrCodeSchema] error listing every violation in its details.
//   - Referential: [ValidateImport] runs the schema tier and then checks every
//     workspace_id. It never fails; it returns a [Result] carrying every
//     violation so a caller can show them all at once.
//
// [Validate] applies both tiers to an in-memory snapshot before it is written.
//
// # Encoding
//
// [Encode] and [Decode] handle JSON and YAML. YAML input is normalised to JSON
// before validation, so both formats go through the same checks.
package snapshot
