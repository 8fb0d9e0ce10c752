package mrdb

import (
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/revq/internal/gitlab"
)

func newDB(t *testing.T) *DB {
	t.Helper()
	kv, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func hash(b byte) plumbing.Hash {
	var h plumbing.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestVersionsEmpty(t *testing.T) {
	db := newDB(t)

	versions, err := db.Versions(7)
	require.NoError(t, err)
	require.Empty(t, versions)

	latest, err := db.Latest(7)
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestInsertAndOrder(t *testing.T) {
	db := newDB(t)

	v0 := Version{Num: 0, Base: hash(1), Head: hash(2)}
	v1 := Version{Num: 1, Base: hash(1), Head: hash(3)}

	existing, err := db.Insert(7, v0)
	require.NoError(t, err)
	require.Nil(t, existing)
	existing, err = db.Insert(7, v1)
	require.NoError(t, err)
	require.Nil(t, existing)

	versions, err := db.Versions(7)
	require.NoError(t, err)
	require.Equal(t, []Version{v0, v1}, versions)

	latest, err := db.Latest(7)
	require.NoError(t, err)
	require.Equal(t, v1, *latest)
}

func TestInsertIsImmutable(t *testing.T) {
	db := newDB(t)

	v0 := Version{Num: 0, Base: hash(1), Head: hash(2)}
	_, err := db.Insert(7, v0)
	require.NoError(t, err)

	// A conflicting record for the same number is not written; the stored
	// record comes back for the caller to compare.
	conflicting := Version{Num: 0, Base: hash(9), Head: hash(8)}
	existing, err := db.Insert(7, conflicting)
	require.NoError(t, err)
	require.NotNil(t, existing)
	require.Equal(t, v0, *existing)

	versions, err := db.Versions(7)
	require.NoError(t, err)
	require.Equal(t, []Version{v0}, versions)
}

func TestVersionsArePerRequest(t *testing.T) {
	db := newDB(t)

	_, err := db.Insert(7, Version{Num: 0, Base: hash(1), Head: hash(2)})
	require.NoError(t, err)
	_, err = db.Insert(8, Version{Num: 0, Base: hash(3), Head: hash(4)})
	require.NoError(t, err)

	versions, err := db.Versions(7)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, hash(2), versions[0].Head)
}

func TestRequestRoundTrip(t *testing.T) {
	db := newDB(t)

	_, found, err := db.Request(7)
	require.NoError(t, err)
	require.False(t, found)

	mr := gitlab.MergeRequest{
		IID:          7,
		Title:        "Add retry logic",
		State:        gitlab.StateOpened,
		SourceBranch: "retry",
		TargetBranch: "main",
		Author:       gitlab.User{Username: "alice", Name: "Alice"},
	}
	require.NoError(t, db.SaveRequest(mr))

	got, found, err := db.Request(7)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, mr, *got)
}

func TestForEachRequestOrdered(t *testing.T) {
	db := newDB(t)

	for _, iid := range []int64{12, 3, 7} {
		require.NoError(t, db.SaveRequest(gitlab.MergeRequest{IID: iid}))
	}

	var got []int64
	err := db.ForEachRequest(func(mr gitlab.MergeRequest) error {
		got = append(got, mr.IID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 7, 12}, got)
}

func TestDeleteRequestCascades(t *testing.T) {
	db := newDB(t)

	require.NoError(t, db.SaveRequest(gitlab.MergeRequest{IID: 7}))
	_, err := db.Insert(7, Version{Num: 0, Base: hash(1), Head: hash(2)})
	require.NoError(t, err)
	_, err = db.Insert(7, Version{Num: 1, Base: hash(1), Head: hash(3)})
	require.NoError(t, err)

	require.NoError(t, db.DeleteRequest(7))

	_, found, err := db.Request(7)
	require.NoError(t, err)
	require.False(t, found)

	versions, err := db.Versions(7)
	require.NoError(t, err)
	require.Empty(t, versions)
}

func TestVersionString(t *testing.T) {
	v := Version{Num: 0, Base: hash(1), Head: hash(2)}
	require.Contains(t, v.String(), "v1: ")
}
