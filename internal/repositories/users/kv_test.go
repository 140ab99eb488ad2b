package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
	"github.com/celerix-dev/celerix-hr/pkg/engine/enginetest"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)

func newTestRepo(t *testing.T, store engine.Store, keys index.Keyspace) (*KVRepository, *index.Env) {
	t.Helper()
	env := index.NewEnv(store)
	env.Keys = keys
	env.Now = func() time.Time { return testNow }
	n := 0
	env.NewID = func() string {
		n++
		return fmt.Sprintf("u%d", n)
	}
	return NewKVRepository(env), env
}

func TestCreateGetByID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, engine.NewMemStore(nil, nil), index.Namespaced{})

	in := &schema.User{Email: "Ada@Example.com", Role: schema.RoleAdmin, Name: "Ada"}
	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, in.ID, "input must not be modified")

	want := &schema.User{
		ID:        "u1",
		Email:     "Ada@Example.com",
		Role:      schema.RoleAdmin,
		Name:      "Ada",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Errorf("Create mismatch (-want +got):\n%s", diff)
	}

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetByID mismatch (-want +got):\n%s", diff)
	}

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.Create(ctx, &schema.User{ID: "u1", Email: "other@example.com"})
	assert.ErrorIs(t, err, index.ErrExists)
}

func TestEmailIndexFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, engine.NewMemStore(nil, nil), index.Namespaced{})

	u, err := repo.Create(ctx, &schema.User{Email: "a@x.com", Role: schema.RoleEmployee})
	require.NoError(t, err)

	got, err := repo.GetByEmail(ctx, " A@X.com ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	updated, err := repo.Update(ctx, u.ID, func(u *schema.User) {
		u.Email = "b@x.com"
		u.ID = "hijack"
		u.CreatedAt = time.Time{}
	})
	require.NoError(t, err)
	assert.Equal(t, u.ID, updated.ID)
	assert.Equal(t, testNow, updated.CreatedAt)

	old, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, old)

	got, err = repo.GetByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestEmailTaken(t *testing.T) {
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)
	repo, _ := newTestRepo(t, store, index.Namespaced{})

	_, err := repo.Create(ctx, &schema.User{Email: "a@x.com"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &schema.User{Email: "b@x.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &schema.User{Email: "A@x.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, index.ErrUniqueTaken)
	assert.Equal(t, 4, store.Len(), "the rejected user must be rolled back")

	_, err = repo.Update(ctx, second.ID, func(u *schema.User) { u.Email = "a@x.com" })
	assert.ErrorIs(t, err, ErrEmailTaken)
	got, _ := repo.GetByEmail(ctx, "b@x.com")
	require.NotNil(t, got, "failed update must keep the old email indexed")
	assert.Equal(t, second.ID, got.ID)
	stored, _ := repo.GetByID(ctx, second.ID)
	assert.Equal(t, "b@x.com", stored.Email, "failed update must restore the record")
}

func TestCreateDuringEmailChange(t *testing.T) {
	ctx := context.Background()
	store := enginetest.NewHooked(engine.NewMemStore(nil, nil))
	repo, env := newTestRepo(t, store, index.Namespaced{})

	u, err := repo.Create(ctx, &schema.User{ID: "u1", Email: "x@x.com"})
	require.NoError(t, err)

	// Another user registers the new email while the old one is released.
	var createErr error
	store.Before(enginetest.On(enginetest.OpDelete, env.Keys.Unique(index.EntityUser, index.IndexEmail, "x@x.com")), func() {
		_, createErr = repo.Create(ctx, &schema.User{ID: "u2", Email: "y@x.com"})
	})

	updated, err := repo.Update(ctx, u.ID, func(u *schema.User) { u.Email = "y@x.com" })
	require.NoError(t, err)
	assert.Equal(t, "y@x.com", updated.Email)
	assert.ErrorIs(t, createErr, ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "y@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	loser, err := repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, loser, "the rejected user must be rolled back")
}

func TestCreateDuringFailedEmailChange(t *testing.T) {
	ctx := context.Background()
	store := enginetest.NewHooked(engine.NewMemStore(nil, nil))
	repo, env := newTestRepo(t, store, index.Namespaced{})

	_, err := repo.Create(ctx, &schema.User{ID: "u1", Email: "x@x.com"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &schema.User{ID: "u2", Email: "y@x.com"})
	require.NoError(t, err)

	// While u1 is rewritten its old email must stay reserved: the update
	// below fails and restores it.
	var createErr error
	store.Before(enginetest.On(enginetest.OpPut, env.Keys.Record(index.EntityUser, "u1")), func() {
		_, createErr = repo.Create(ctx, &schema.User{ID: "u3", Email: "x@x.com"})
	})

	_, err = repo.Update(ctx, "u1", func(u *schema.User) { u.Email = "y@x.com" })
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, createErr, ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "x@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	stored, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "x@x.com", stored.Email)

	loser, err := repo.GetByID(ctx, "u3")
	require.NoError(t, err)
	assert.Nil(t, loser)
}

func TestConcurrentClaimsOfOneEmail(t *testing.T) {
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)
	repo, _ := newTestRepo(t, store, index.Namespaced{})

	const n = 8
	for i := 0; i < n; i++ {
		_, err := repo.Create(ctx, &schema.User{ID: fmt.Sprintf("old%d", i), Email: fmt.Sprintf("old%d@x.com", i)})
		require.NoError(t, err)
	}

	const shared = "shared@x.com"
	errs := make([]error, 2*n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, &schema.User{ID: fmt.Sprintf("new%d", i), Email: shared})
		}(i)
		go func(i int) {
			defer wg.Done()
			_, errs[n+i] = repo.Update(ctx, fmt.Sprintf("old%d", i), func(u *schema.User) { u.Email = shared })
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, wins)

	winner, err := repo.GetByEmail(ctx, shared)
	require.NoError(t, err)
	require.NotNil(t, winner)

	users, err := repo.List(ctx, 0)
	require.NoError(t, err)
	holders := 0
	for _, u := range users {
		if u.Email == shared {
			holders++
			assert.Equal(t, winner.ID, u.ID)
			continue
		}
		// Losing updates keep their old email indexed.
		got, err := repo.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.NotNil(t, got, u.Email)
		assert.Equal(t, u.ID, got.ID)
	}
	assert.Equal(t, 1, holders)

	// Only the winning create, if any, adds a user.
	want := n
	if strings.HasPrefix(winner.ID, "new") {
		want++
	}
	assert.Len(t, users, want)
}

func TestStaleEmailEntry(t *testing.T) {
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)
	repo, env := newTestRepo(t, store, index.Namespaced{})

	key := env.Keys.Unique(index.EntityUser, index.IndexEmail, "a@x.com")
	require.NoError(t, store.Put(ctx, key, []byte(`"ghost"`)))

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	u, err := repo.Create(ctx, &schema.User{Email: "a@x.com"})
	require.NoError(t, err, "a stale holder must not block the email")
	got, err = repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestDeleteRemovesEmail(t *testing.T) {
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)
	repo, _ := newTestRepo(t, store, index.Namespaced{})

	u, err := repo.Create(ctx, &schema.User{Email: "a@x.com"})
	require.NoError(t, err)

	ok, err := repo.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := repo.GetByID(ctx, u.ID)
	assert.Nil(t, got)
	got, _ = repo.GetByEmail(ctx, "a@x.com")
	assert.Nil(t, got)
	assert.Zero(t, store.Len())

	ok, err = repo.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := repo.Update(ctx, u.ID, func(*schema.User) {})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestList(t *testing.T) {
	for _, keys := range []index.Keyspace{index.Namespaced{}, index.Legacy{}} {
		t.Run(keys.Name(), func(t *testing.T) {
			ctx := context.Background()
			repo, _ := newTestRepo(t, engine.NewMemStore(nil, nil), keys)
			for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
				_, err := repo.Create(ctx, &schema.User{Email: e})
				require.NoError(t, err)
			}

			users, err := repo.List(ctx, 0)
			require.NoError(t, err)
			var ids []string
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, ids)

			users, err = repo.List(ctx, 2)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(users), 2)
		})
	}
}

func TestLegacyLayoutKeys(t *testing.T) {
	ctx := context.Background()
	store := engine.NewMemStore(nil, nil)
	repo, _ := newTestRepo(t, store, index.Legacy{})

	_, err := repo.Create(ctx, &schema.User{ID: "42", Email: "a@x.com"})
	require.NoError(t, err)

	keys, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:42", "user:email:a@x.com"}, keys)

	raw, _ := store.Get(ctx, "user:email:a@x.com")
	assert.Equal(t, `"42"`, string(raw))

	_, err = repo.Create(ctx, &schema.User{ID: "email", Email: "b@x.com"})
	assert.ErrorIs(t, err, index.ErrInvalidID)

	// The email entry is not a user, whatever id names it.
	for _, id := range []string{"email:a@x.com", "email"} {
		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, got, id)

		updated, err := repo.Update(ctx, id, func(u *schema.User) { u.Name = "x" })
		require.NoError(t, err, id)
		assert.Nil(t, updated, id)

		ok, err := repo.Delete(ctx, id)
		require.NoError(t, err, id)
		assert.False(t, ok, id)
	}
	assert.Equal(t, 2, store.Len())
}

func TestCreateRollsBackOnIndexFailure(t *testing.T) {
	ctx := context.Background()
	faulty := enginetest.NewFaulty(engine.NewMemStore(nil, nil))
	repo, _ := newTestRepo(t, faulty, index.Namespaced{})

	faulty.Fail(enginetest.On(enginetest.OpPut, "idx/user/email"))
	_, err := repo.Create(ctx, &schema.User{Email: "a@x.com"})
	require.ErrorIs(t, err, engine.ErrUnavailable)
	assert.NotErrorIs(t, err, index.ErrPartialWrite)

	faulty.Reset()
	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "primary write must be undone")
}

func TestCreatePartialWrite(t *testing.T) {
	ctx := context.Background()
	faulty := enginetest.NewFaulty(engine.NewMemStore(nil, nil))
	repo, _ := newTestRepo(t, faulty, index.Namespaced{})

	faulty.Fail(enginetest.On(enginetest.OpPut, "idx/user/email"))
	faulty.Fail(enginetest.On(enginetest.OpDelete, "rec/user/"))
	_, err := repo.Create(ctx, &schema.User{Email: "a@x.com"})

	var perr *index.PartialWriteError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "users.create", perr.Op)
	assert.Equal(t, []string{"put rec/user/u1"}, perr.Completed)

	// The record is left behind unindexed, still reachable by id.
	faulty.Reset()
	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	byEmail, _ := repo.GetByEmail(ctx, "a@x.com")
	assert.Nil(t, byEmail)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	ok, err := CheckPassword(hash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}
