package store

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// table is an id-keyed collection.
type table[T any] struct {
	kind string
	rows map[string]T
}

func newTable[T any](kind string) table[T] {
	return table[T]{kind: kind, rows: make(map[string]T)}
}

func (t table[T]) put(id string, v T, mode Mode) error {
	if _, ok := t.rows[id]; ok && mode == ModeInsert {
		return errors.New(errors.ErrCodeConflict, "%s %q already exists", t.kind, id)
	}
	t.rows[id] = v
	return nil
}

// list returns the rows accepted by keep, ordered by id.
func (t table[T]) list(keep func(T) bool) []T {
	out := []T{}
	for _, id := range slices.Sorted(maps.Keys(t.rows)) {
		if v := t.rows[id]; keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t table[T]) clone() table[T] {
	return table[T]{kind: t.kind, rows: maps.Clone(t.rows)}
}

type memState struct {
	workspaces     table[snapshot.Workspace]
	stories        table[snapshot.Story]
	configurations table[snapshot.Configuration]
	templates      table[snapshot.Template]
	fieldMappings  table[snapshot.FieldMapping]
	featureFlags   table[snapshot.FeatureFlag]
	aiPrompts      table[snapshot.AIPrompt]
}

func newMemState() *memState {
	return &memState{
		workspaces:     newTable[snapshot.Workspace]("workspace"),
		stories:        newTable[snapshot.Story]("story"),
		configurations: newTable[snapshot.Configuration]("configuration"),
		templates:      newTable[snapshot.Template]("template"),
		fieldMappings:  newTable[snapshot.FieldMapping]("field mapping"),
		featureFlags:   newTable[snapshot.FeatureFlag]("feature flag"),
		aiPrompts:      newTable[snapshot.AIPrompt]("AI prompt"),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		workspaces:     s.workspaces.clone(),
		stories:        s.stories.clone(),
		configurations: s.configurations.clone(),
		templates:      s.templates.clone(),
		fieldMappings:  s.fieldMappings.clone(),
		featureFlags:   s.featureFlags.clone(),
		aiPrompts:      s.aiPrompts.clone(),
	}
}

func (s *memState) requireWorkspace(kind, id, workspaceID string) error {
	if _, ok := s.workspaces.rows[workspaceID]; !ok {
		return errors.New(errors.ErrCodeReferential, "%s %q references non-existent workspace %q", kind, id, workspaceID)
	}
	return nil
}

func (s *memState) putWorkspace(_ context.Context, w snapshot.Workspace, mode Mode) error {
	return s.workspaces.put(w.ID, w, mode)
}

func (s *memState) putConfiguration(_ context.Context, c snapshot.Configuration, mode Mode) error {
	if err := s.requireWorkspace("configuration", c.ID, c.WorkspaceID); err != nil {
		return err
	}
	return s.configurations.put(c.ID, c, mode)
}

func (s *memState) putTemplate(_ context.Context, t snapshot.Template, mode Mode) error {
	if err := s.requireWorkspace("template", t.ID, t.WorkspaceID); err != nil {
		return err
	}
	return s.templates.put(t.ID, t, mode)
}

func (s *memState) putFieldMapping(_ context.Context, m snapshot.FieldMapping, mode Mode) error {
	if err := s.requireWorkspace("field mapping", m.ID, m.WorkspaceID); err != nil {
		return err
	}
	return s.fieldMappings.put(m.ID, m, mode)
}

func (s *memState) putFeatureFlag(_ context.Context, f snapshot.FeatureFlag, mode Mode) error {
	if err := s.requireWorkspace("feature flag", f.ID, f.WorkspaceID); err != nil {
		return err
	}
	return s.featureFlags.put(f.ID, f, mode)
}

func (s *memState) putAIPrompt(_ context.Context, p snapshot.AIPrompt, mode Mode) error {
	if err := s.requireWorkspace("AI prompt", p.ID, p.WorkspaceID); err != nil {
		return err
	}
	return s.aiPrompts.put(p.ID, p, mode)
}

func (s *memState) putStory(_ context.Context, st snapshot.Story, mode Mode) error {
	if err := s.requireWorkspace("story", st.ID, st.WorkspaceID); err != nil {
		return err
	}
	return s.stories.put(st.ID, st, mode)
}

// checkParents verifies story parent references once all writes are done,
// the way a deferred foreign key would.
func (s *memState) checkParents() error {
	for _, st := range s.stories.list(nil) {
		if st.ParentID == "" {
			continue
		}
		if _, ok := s.stories.rows[st.ParentID]; !ok {
			return errors.New(errors.ErrCodeReferential, "story %q references non-existent parent story %q", st.ID, st.ParentID)
		}
	}
	return nil
}

// MemoryStore is an in-process Repository. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) ListWorkspaces(ctx context.Context) ([]snapshot.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.workspaces.list(nil), nil
}

func (m *MemoryStore) GetWorkspace(ctx context.Context, id string) (*snapshot.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.state.workspaces.rows[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeWorkspaceNotFound, "workspace %q not found", id)
	}
	return &w, nil
}

func (m *MemoryStore) UpsertWorkspace(ctx context.Context, w snapshot.Workspace) error {
	if err := errors.ValidateWorkspaceID(w.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.putWorkspace(ctx, w, ModeUpsert)
}

func (m *MemoryStore) ListStories(ctx context.Context, workspaceID string) ([]snapshot.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.stories.list(func(s snapshot.Story) bool { return s.WorkspaceID == workspaceID }), nil
}

func (m *MemoryStore) UpsertStory(ctx context.Context, s snapshot.Story) error {
	if err := errors.ValidateID(s.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.stories.rows[s.ParentID]; s.ParentID != "" && !ok {
		return errors.New(errors.ErrCodeReferential, "story %q references non-existent parent story %q", s.ID, s.ParentID)
	}
	return m.state.putStory(ctx, s, ModeUpsert)
}

func (m *MemoryStore) LoadSnapshotData(ctx context.Context, workspaceIDs ...string) (snapshot.Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(workspaceIDs))
	for _, id := range workspaceIDs {
		if _, ok := m.state.workspaces.rows[id]; !ok {
			return snapshot.Data{}, errors.New(errors.ErrCodeWorkspaceNotFound, "workspace %q not found", id)
		}
		want[id] = true
	}
	in := func(ws string) bool { return len(want) == 0 || want[ws] }

	return snapshot.Data{
		Workspaces:     m.state.workspaces.list(func(w snapshot.Workspace) bool { return in(w.ID) }),
		Stories:        m.state.stories.list(func(s snapshot.Story) bool { return in(s.WorkspaceID) }),
		Configurations: m.state.configurations.list(func(c snapshot.Configuration) bool { return in(c.WorkspaceID) }),
		Templates:      m.state.templates.list(func(t snapshot.Template) bool { return in(t.WorkspaceID) }),
		FieldMappings:  m.state.fieldMappings.list(func(f snapshot.FieldMapping) bool { return in(f.WorkspaceID) }),
		FeatureFlags:   m.state.featureFlags.list(func(f snapshot.FeatureFlag) bool { return in(f.WorkspaceID) }),
		AIPrompts:      m.state.aiPrompts.list(func(p snapshot.AIPrompt) bool { return in(p.WorkspaceID) }),
	}, nil
}

// ApplySnapshot writes into a copy of the current state and swaps it in only
// when every write and parent reference succeeded.
func (m *MemoryStore) ApplySnapshot(ctx context.Context, snap *snapshot.Snapshot, opts ApplyOptions) (*ApplyResult, error) {
	opts, result, err := prepare(snap, opts)
	if err != nil || opts.DryRun {
		return result, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := writeSnapshot(ctx, next, snap.Data, opts.Mode); err != nil {
		return nil, err
	}
	if err := next.checkParents(); err != nil {
		return nil, err
	}
	m.state = next
	return result, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

var _ Repository = (*MemoryStore)(nil)
