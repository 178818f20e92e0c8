package store_test

import (
	"context"
	"errors"
	"testing"

	opts "github.com/goliatone/go-plotopts"
	"github.com/goliatone/go-plotopts/pkg/store"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ref     store.Ref
		want    string
		wantErr error
	}{
		{name: "custom", ref: store.Ref{Backend: "bokeh", ID: "abc"}, want: "bokeh/abc"},
		{name: "defaults", ref: store.Defaults("matplotlib"), want: "matplotlib/defaults"},
		{name: "missing backend", ref: store.Ref{ID: "abc"}, wantErr: store.ErrBackendRequired},
		{name: "missing id", ref: store.Ref{Backend: "bokeh"}, wantErr: store.ErrIDRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("identifier: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMemoryStoreRoundTripIsDetached(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	ref := store.Ref{Backend: "bokeh", ID: "abc"}
	snapshot := opts.Expanded{"Curve": {opts.GroupStyle: {"color": "red"}}}

	meta, err := s.Save(ctx, ref, snapshot, store.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if meta.SnapshotID != "bokeh/abc" {
		t.Fatalf("expected default snapshot id, got %q", meta.SnapshotID)
	}
	snapshot["Curve"][opts.GroupStyle]["color"] = "blue"

	loaded, _, ok, err := s.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded["Curve"][opts.GroupStyle]["color"] != "red" {
		t.Fatalf("expected stored snapshot detached from caller, got %v", loaded)
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok, _ := s.Load(ctx, ref); ok {
		t.Fatalf("expected snapshot removed")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}
