package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	opts "github.com/goliatone/go-plotopts"
)

// DefaultsID addresses the session defaults of a backend.
const DefaultsID = "defaults"

var (
	// ErrBackendRequired is returned for refs without a backend.
	ErrBackendRequired = errors.New("store: backend is required")
	// ErrIDRequired is returned for refs without an option id.
	ErrIDRequired = errors.New("store: option id is required")
)

// Ref identifies one persisted snapshot.
type Ref struct {
	Backend string
	ID      string
}

// Defaults returns the ref of backend's session defaults.
func Defaults(backend string) Ref {
	return Ref{Backend: backend, ID: DefaultsID}
}

// Identifier returns the canonical storage key "backend/id".
func (r Ref) Identifier() (string, error) {
	backend := strings.TrimSpace(r.Backend)
	if backend == "" {
		return "", ErrBackendRequired
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return "", fmt.Errorf("%w for backend %q", ErrIDRequired, backend)
	}
	return backend + "/" + id, nil
}

// Meta is storage-owned metadata used for provenance.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads, saves and deletes one snapshot per Ref.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot opts.Expanded, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot opts.Expanded, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra != nil {
		out.Extra = maps.Clone(meta.Extra)
	}
	return out
}
