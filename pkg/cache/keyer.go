package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// Keyer builds cache keys for the different kinds of cached values.
type Keyer interface {
	// HTTPKey is the key for a raw upstream API response.
	HTTPKey(namespace, key string) string
	// HierarchyKey is the key for a built forest of one workspace and source.
	HierarchyKey(workspaceID, source string) string
	// PlanKey is the key for a sync plan computed from a set of source ids.
	PlanKey(workspaceID string, sourceIDs []string) string
}

// DefaultKeyer produces readable keys for HTTP and hierarchy entries and
// hashed keys for plans.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() *DefaultKeyer { return &DefaultKeyer{} }

func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

func (DefaultKeyer) HierarchyKey(workspaceID, source string) string {
	return "hierarchy:" + workspaceID + ":" + strings.ToLower(source)
}

// PlanKey is "plan:<workspace>:<digest>". The digest covers the sorted ids,
// so the order in which operations were planned does not matter.
func (DefaultKeyer) PlanKey(workspaceID string, sourceIDs []string) string {
	ids := slices.Clone(sourceIDs)
	slices.Sort(ids)
	return "plan:" + workspaceID + ":" + Hash([]byte(strings.Join(ids, "\n")))[:16]
}

var _ Keyer = DefaultKeyer{}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
