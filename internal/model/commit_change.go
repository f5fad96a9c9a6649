package model

// CommitChange is one push-event commit's file-level deltas, in the order
// GitHub delivered them.
type CommitChange struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}
