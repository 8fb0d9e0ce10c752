package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "secret", 42)
	return c
}

func TestListOpenMergeRequestsPaginates(t *testing.T) {
	var tokens []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/merge_requests", r.URL.Path)
		require.Equal(t, "opened", r.URL.Query().Get("state"))
		tokens = append(tokens, r.Header.Get("PRIVATE-TOKEN"))

		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			fmt.Fprint(w, `[{"iid": 1, "title": "one"}, {"iid": 2, "title": "two"}]`)
		case "2":
			fmt.Fprint(w, `[{"iid": 3, "title": "three"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	c := newTestClient(t, handler)
	mrs, err := c.ListOpenMergeRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, mrs, 3)
	require.Equal(t, int64(3), mrs[2].IID)
	require.Equal(t, []string{"secret", "secret"}, tokens)
}

func TestMergeRequestByIID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/merge_requests/7", r.URL.Path)
		fmt.Fprint(w, `{
			"iid": 7,
			"title": "Add retry logic",
			"state": "merged",
			"sha": "1111111111111111111111111111111111111111",
			"diff_refs": {"base_sha": "2222222222222222222222222222222222222222"}
		}`)
	})

	c := newTestClient(t, handler)
	mr, err := c.MergeRequestByIID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, StateMerged, mr.State)
	require.NotNil(t, mr.DiffRefs)
	require.Equal(t, "2222222222222222222222222222222222222222", mr.DiffRefs.BaseSHA)
}

func TestNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "404 Not found"}`, http.StatusNotFound)
	})

	c := newTestClient(t, handler)
	_, err := c.MergeRequestByIID(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAuthFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "401 Unauthorized"}`, http.StatusUnauthorized)
	})

	c := newTestClient(t, handler)
	_, err := c.ListOpenMergeRequests(context.Background())
	require.ErrorContains(t, err, "authentication failed")
}

func TestBranchTip(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/repository/branches/release%2F1.0", r.URL.EscapedPath())
		fmt.Fprint(w, `{"name": "release/1.0", "commit": {"id": "3333333333333333333333333333333333333333"}}`)
	})

	c := newTestClient(t, handler)
	tip, err := c.BranchTip(context.Background(), "release/1.0")
	require.NoError(t, err)
	require.Equal(t, "3333333333333333333333333333333333333333", tip)
}

func TestVersions(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v4/projects/42/merge_requests/7/versions", r.URL.Path)
		fmt.Fprint(w, `[
			{"base_commit_sha": "aaaa", "head_commit_sha": "bbbb"},
			{"base_commit_sha": "cccc", "head_commit_sha": "dddd"}
		]`)
	})

	c := newTestClient(t, handler)
	versions, err := c.Versions(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []DiffVersion{
		{BaseSHA: "aaaa", HeadSHA: "bbbb"},
		{BaseSHA: "cccc", HeadSHA: "dddd"},
	}, versions)
}

func TestHiddenFor(t *testing.T) {
	draft := MergeRequest{Draft: true, Author: User{Username: "alice"}}
	own := MergeRequest{Author: User{Username: "me"}}
	other := MergeRequest{Author: User{Username: "alice"}}

	require.True(t, draft.HiddenFor("me"))
	require.True(t, own.HiddenFor("me"))
	require.False(t, other.HiddenFor("me"))
	require.False(t, other.HiddenFor(""))
}
