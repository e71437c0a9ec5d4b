package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/testutils"
)

const (
	primaryURL = "https://primary.example/exec"
	stableURL  = "https://stable.example/exec"
	key        = "slg_api_base_v1"
)

func newResolver(t *testing.T, store kvstore.Store, primary, stable string) *Resolver {
	t.Helper()
	return NewResolver(context.Background(), primary, stable, kvstore.NewSlot(store, key), testutils.NewTestLogger())
}

func TestResolve_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		stable  string
		want    string
	}{
		{name: "primary only", primary: primaryURL, want: primaryURL},
		{name: "stable preferred over primary", primary: primaryURL, stable: stableURL, want: stableURL},
		{name: "whitespace trimmed", primary: "  " + primaryURL + "\n", want: primaryURL},
		{name: "nothing configured", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, kvstore.NewMemoryStore(), tt.primary, tt.stable)
			assert.Equal(t, tt.want, r.Resolve())
		})
	}
}

func TestPromote_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := newResolver(t, store, primaryURL, stableURL)

	require.NoError(t, r.Promote(ctx, "  https://mirror.example/exec "))
	assert.Equal(t, "https://mirror.example/exec", r.Resolve())

	reloaded := newResolver(t, store.Reopen(), primaryURL, stableURL)
	assert.Equal(t, "https://mirror.example/exec", reloaded.Resolve())
}

func TestPromote_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := newResolver(t, store, primaryURL, "")

	require.NoError(t, r.Promote(ctx, stableURL))
	require.NoError(t, r.Promote(ctx, stableURL))
	assert.Equal(t, stableURL, r.Resolve())

	raw, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, stableURL, string(raw))

	assert.Error(t, r.Promote(ctx, "   "))
	assert.Equal(t, stableURL, r.Resolve())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	r := newResolver(t, store, primaryURL, stableURL)
	require.NoError(t, r.Promote(ctx, "https://mirror.example/exec"))

	require.NoError(t, r.Reset(ctx))
	assert.Equal(t, stableURL, r.Resolve())

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	reloaded := newResolver(t, store.Reopen(), primaryURL, "")
	assert.Equal(t, primaryURL, reloaded.Resolve())
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()

	r := newResolver(t, kvstore.NewMemoryStore(), primaryURL, stableURL)
	assert.Equal(t, []string{stableURL, primaryURL}, r.Candidates())

	require.NoError(t, r.Promote(ctx, "https://a.example/exec"))
	assert.Equal(t, []string{"https://a.example/exec", primaryURL, stableURL}, r.Candidates())

	require.NoError(t, r.Promote(ctx, primaryURL))
	assert.Equal(t, []string{primaryURL, stableURL}, r.Candidates())

	empty := newResolver(t, kvstore.NewMemoryStore(), "", "")
	assert.Empty(t, empty.Candidates())
}

func TestNewResolver_StoreFailure(t *testing.T) {
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Close())

	r := newResolver(t, store, primaryURL, "")
	assert.Equal(t, primaryURL, r.Resolve())

	err := r.Promote(context.Background(), stableURL)
	assert.ErrorIs(t, err, kvstore.ErrClosed)
	assert.Equal(t, stableURL, r.Resolve(), "in-memory choice still applies")
}

func TestNewResolver_NilSlot(t *testing.T) {
	r := NewResolver(context.Background(), primaryURL, "", nil, nil)
	require.NoError(t, r.Promote(context.Background(), stableURL))
	assert.Equal(t, stableURL, r.Resolve())
	require.NoError(t, r.Reset(context.Background()))
	assert.Equal(t, primaryURL, r.Resolve())
}
