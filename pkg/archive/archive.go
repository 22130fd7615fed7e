// Package archive keeps a history of exported snapshots.
//
// Every archived export is stored with its workspace ids, record counts and
// the snapshot document itself, with integration secrets masked. [Mongo]
// stores entries in a MongoDB collection; [Memory] keeps them in process.
package archive

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// DefaultLimit is the number of entries List returns when limit <= 0.
const DefaultLimit = 20

// Meta describes where an archived export came from.
type Meta struct {
	Source string `bson:"source,omitempty" json:"source,omitempty"`
	Note   string `bson:"note,omitempty" json:"note,omitempty"`
}

// Entry is one archived export. Document holds the redacted snapshot as JSON
// and is only populated by Get.
type Entry struct {
	ID           string         `bson:"_id" json:"id"`
	WorkspaceIDs []string       `bson:"workspace_ids" json:"workspace_ids"`
	Version      string         `bson:"version" json:"version"`
	Timestamp    time.Time      `bson:"timestamp" json:"timestamp"`
	ArchivedAt   time.Time      `bson:"archived_at" json:"archived_at"`
	Counts       map[string]int `bson:"counts" json:"counts"`
	Meta         `bson:",inline"`
	Document     string `bson:"document,omitempty" json:"-"`
}

// Snapshot decodes and validates the archived document.
func (e *Entry) Snapshot() (*snapshot.Snapshot, error) {
	return snapshot.ValidateExport([]byte(e.Document))
}

// Archive stores snapshot exports.
type Archive interface {
	// Save archives snap and returns the new entry's id.
	Save(ctx context.Context, snap *snapshot.Snapshot, meta Meta) (string, error)

	// List returns the newest entries first, without documents. An empty
	// workspaceID lists entries of every workspace.
	List(ctx context.Context, workspaceID string, limit int) ([]Entry, error)

	// Get returns one entry with its document.
	Get(ctx context.Context, id string) (*Entry, error)

	Close(ctx context.Context) error
}

// newEntry builds the entry for snap with secrets masked.
func newEntry(snap *snapshot.Snapshot, meta Meta) (*Entry, error) {
	if snap == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no snapshot to archive")
	}
	redacted := *snap
	redacted.Data = snap.Data.Redacted()

	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, &redacted, snapshot.FormatJSON); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot")
	}
	return &Entry{
		ID:           uuid.NewString(),
		WorkspaceIDs: snap.Data.WorkspaceIDs(),
		Version:      snap.Version,
		Timestamp:    snap.Timestamp.UTC(),
		ArchivedAt:   time.Now().UTC(),
		Counts:       snap.Data.Counts(),
		Meta:         meta,
		Document:     buf.String(),
	}, nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "archived snapshot %q not found", id)
}

// Memory is an in-process Archive.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory returns an empty in-process archive.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(ctx context.Context, snap *snapshot.Snapshot, meta Meta) (string, error) {
	e, err := newEntry(snap, meta)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return e.ID, nil
}

func (m *Memory) List(ctx context.Context, workspaceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Entry{}
	for _, e := range slices.Backward(m.entries) {
		if workspaceID == "" || slices.Contains(e.WorkspaceIDs, workspaceID) {
			e.Document = ""
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, notFound(id)
}

func (m *Memory) Close(ctx context.Context) error { return nil }

var _ Archive = (*Memory)(nil)
