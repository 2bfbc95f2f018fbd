package tablecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID    string
	Email string
}

func TestInsertAndGet(t *testing.T) {
	t.Parallel()
	c := New("users")

	require.NoError(t, c.Insert("u1", user{ID: "u1", Email: "a@example.com"}, nil))

	row, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, user{ID: "u1", Email: "a@example.com"}, row)
	assert.Equal(t, 1, c.Count())
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	t.Parallel()
	c := New("users")
	require.NoError(t, c.Insert("u1", user{ID: "u1"}, nil))

	err := c.Insert("u1", user{ID: "u1"}, nil)
	require.Error(t, err)
	var ce *CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrDuplicateKey, ce.Kind)
}

func TestUniqueIndexLookup(t *testing.T) {
	t.Parallel()
	c := New("users")
	c.DeclareIndex("email")

	require.NoError(t, c.Insert("u1", user{ID: "u1", Email: "a@example.com"},
		IndexKeys{"email": "a@example.com"}))

	row, err := c.FindByUnique("email", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user{ID: "u1", Email: "a@example.com"}, row)
}

func TestIndexViolationOnConflictingKey(t *testing.T) {
	t.Parallel()
	c := New("users")
	c.DeclareIndex("email")
	require.NoError(t, c.Insert("u1", user{ID: "u1"}, IndexKeys{"email": "a@example.com"}))

	err := c.Insert("u2", user{ID: "u2"}, IndexKeys{"email": "a@example.com"})
	require.Error(t, err)
	var ce *CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrIndexViolation, ce.Kind)
}

func TestUpdateInvokesCallbackWithOldAndNew(t *testing.T) {
	t.Parallel()
	c := New("users")
	require.NoError(t, c.Insert("u1", user{ID: "u1", Email: "old@example.com"}, nil))

	var gotOld, gotNew user
	c.OnUpdate(func(old, new Row) {
		gotOld = old.(user)
		gotNew = new.(user)
	})

	require.NoError(t, c.Update("u1", user{ID: "u1", Email: "new@example.com"}, nil))
	assert.Equal(t, "old@example.com", gotOld.Email)
	assert.Equal(t, "new@example.com", gotNew.Email)
}

func TestUpdateUnknownKeyFails(t *testing.T) {
	t.Parallel()
	c := New("users")
	err := c.Update("missing", user{}, nil)
	require.Error(t, err)
	var ce *CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrRowNotFound, ce.Kind)
}

func TestDeleteRemovesRowAndIndexEntries(t *testing.T) {
	t.Parallel()
	c := New("users")
	c.DeclareIndex("email")
	require.NoError(t, c.Insert("u1", user{ID: "u1"}, IndexKeys{"email": "a@example.com"}))

	deleted := false
	c.OnDelete(func(Row) { deleted = true })

	require.NoError(t, c.Delete("u1"))
	assert.True(t, deleted)
	assert.Equal(t, 0, c.Count())

	_, err := c.FindByUnique("email", "a@example.com")
	require.Error(t, err)
}

func TestCallbackPanicIsIsolated(t *testing.T) {
	t.Parallel()
	c := New("users")

	c.OnInsert(func(Row) { panic("boom") })
	called := false
	c.OnInsert(func(Row) { called = true })

	assert.NotPanics(t, func() {
		require.NoError(t, c.Insert("u1", user{ID: "u1"}, nil))
	})
	assert.True(t, called)
}

func TestOffInsertStopsFutureCallbacks(t *testing.T) {
	t.Parallel()
	c := New("users")

	count := 0
	id := c.OnInsert(func(Row) { count++ })
	require.NoError(t, c.Insert("u1", user{}, nil))

	c.OffInsert(id)
	require.NoError(t, c.Insert("u2", user{}, nil))

	assert.Equal(t, 1, count)
}
