package service

import (
	"sort"

	"github.com/xxxsen/notesync/internal/github"
	"github.com/xxxsen/notesync/internal/model"
)

// Diff is the outcome of one reconciliation pass: which paths need a fetch
// and upsert, and which stored notes have to go.
type Diff struct {
	ToUpsert []string
	ToDelete []string
}

func (d Diff) Empty() bool {
	return len(d.ToUpsert) == 0 && len(d.ToDelete) == 0
}

// ReconcileCommits folds an ordered push-event commit list into a Diff.
// Commits are walked oldest to newest and the last action wins per path, so a
// file touched several times in one push is fetched once with its eventual
// content, and a file added then removed in the same push nets out to a
// delete of a row that never existed (a no-op at the store).
func ReconcileCommits(commits []model.CommitChange) Diff {
	final := make(map[string]string)
	for _, commit := range commits {
		for _, path := range commit.Added {
			if github.IsMarkdownPath(path) {
				final[path] = "added"
			}
		}
		for _, path := range commit.Modified {
			if github.IsMarkdownPath(path) {
				final[path] = "modified"
			}
		}
		for _, path := range commit.Removed {
			if github.IsMarkdownPath(path) {
				final[path] = "removed"
			}
		}
	}
	var diff Diff
	for path, action := range final {
		if action == "removed" {
			diff.ToDelete = append(diff.ToDelete, path)
			continue
		}
		diff.ToUpsert = append(diff.ToUpsert, path)
	}
	sort.Strings(diff.ToUpsert)
	sort.Strings(diff.ToDelete)
	return diff
}

// ReconcileListing diffs the full remote markdown listing against the stored
// note paths. Without commit history every remote path is a refresh
// candidate, so remote paths all land in ToUpsert; stored paths missing from
// the remote go to ToDelete.
func ReconcileListing(remote []string, stored []string) Diff {
	remoteSet := make(map[string]struct{}, len(remote))
	var diff Diff
	for _, path := range remote {
		if !github.IsMarkdownPath(path) {
			continue
		}
		if _, ok := remoteSet[path]; ok {
			continue
		}
		remoteSet[path] = struct{}{}
		diff.ToUpsert = append(diff.ToUpsert, path)
	}
	for _, path := range stored {
		if _, ok := remoteSet[path]; !ok {
			diff.ToDelete = append(diff.ToDelete, path)
		}
	}
	sort.Strings(diff.ToUpsert)
	sort.Strings(diff.ToDelete)
	return diff
}
