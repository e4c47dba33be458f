package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/hushwire/hushwire/internal/identity"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate_CanonicalPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.registry.GetOrCreate(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)
	require.Less(t, first.UserLowID, first.UserHighID)

	// Both orderings resolve to the same session.
	second, err := env.registry.GetOrCreate(ctx, env.bob.ID, env.alice.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestRegistry_GetOrCreate_ConcurrentFirstContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := env.alice.ID, env.bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			session, err := env.registry.GetOrCreate(ctx, a, b)
			ids[i], errs[i] = session.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestRegistry_GetOrCreate_SelfPair(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.GetOrCreate(context.Background(), env.alice.ID, env.alice.ID)
	require.ErrorIs(t, err, ErrSelfSession)
}

func TestRegistry_GetOrCreate_UnknownIdentity(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.GetOrCreate(context.Background(), env.alice.ID, 42)
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestRegistry_Find_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Find(context.Background(), env.alice.ID, env.bob.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_Find_AfterCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.registry.GetOrCreate(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	found, err := env.registry.Find(ctx, env.bob.ID, env.alice.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}
