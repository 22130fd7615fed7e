package cache

// ScopedKeyer prefixes every key of an inner Keyer, e.g. with a workspace or
// tenant id, so that entries of different scopes never collide.
//
//	wsKeyer := cache.NewScopedKeyer(nil, "ws:"+workspaceID+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner uses DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) *ScopedKeyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

func (k *ScopedKeyer) HierarchyKey(workspaceID, source string) string {
	return k.prefix + k.inner.HierarchyKey(workspaceID, source)
}

func (k *ScopedKeyer) PlanKey(workspaceID string, sourceIDs []string) string {
	return k.prefix + k.inner.PlanKey(workspaceID, sourceIDs)
}

var _ Keyer = (*ScopedKeyer)(nil)
