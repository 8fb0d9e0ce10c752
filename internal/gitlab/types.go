package gitlab

import "time"

// State is a merge request lifecycle state as reported by the API.
type State string

const (
	StateOpened State = "opened"
	StateClosed State = "closed"
	StateMerged State = "merged"
	StateLocked State = "locked"
)

// User identifies a GitLab account.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// DiffRefs carries the commit window the remote currently perceives for a
// merge request. BaseSHA may be empty on older servers.
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	HeadSHA  string `json:"head_sha"`
	StartSHA string `json:"start_sha"`
}

// MergeRequest is the subset of the API's merge request payload we use.
type MergeRequest struct {
	ID           int64     `json:"id"`
	IID          int64     `json:"iid"`
	ProjectID    int64     `json:"project_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Draft        bool      `json:"draft"`
	State        State     `json:"state"`
	UpdatedAt    time.Time `json:"updated_at"`
	TargetBranch string    `json:"target_branch"`
	SourceBranch string    `json:"source_branch"`
	Author       User      `json:"author"`
	Assignees    []User    `json:"assignees"`
	SHA          string    `json:"sha"`
	DiffRefs     *DiffRefs `json:"diff_refs"`
}

// HiddenFor reports whether mr should be hidden from username's default
// listing: drafts and the user's own requests are noise for a reviewer.
func (mr *MergeRequest) HiddenFor(username string) bool {
	if mr.Draft {
		return true
	}
	return username != "" && mr.Author.Username == username
}

// DiffVersion is one entry of a merge request's version history. The API
// only retains a short recent window (about 20 entries), newest first.
type DiffVersion struct {
	BaseSHA string `json:"base_commit_sha"`
	HeadSHA string `json:"head_commit_sha"`
}
