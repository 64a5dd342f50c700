package linking

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// Grouper partitions linked records into changes
type Grouper struct {
	store    *models.Store
	priority TitlePriority
	log      logrus.FieldLogger
}

// NewGrouper creates a grouper over store
func NewGrouper(store *models.Store, priority TitlePriority, log logrus.FieldLogger) *Grouper {
	return &Grouper{
		store:    store,
		priority: priority,
		log:      logging.OrDiscard(log),
	}
}

// node is a vertex of the reference graph: an issue number or a commit sha
type node struct {
	issue int
	sha   string
}

// Group starts a change at every relevant, ungrouped record in descending
// number order and pulls in everything reference-connected to it. The first
// change to reach a record keeps it.
func (g *Grouper) Group() []*models.Change {
	referencedBy := g.reverseReferences()

	var changes []*models.Change
	for _, root := range g.store.Issues() {
		if !root.Relevant() || root.Grouped() {
			continue
		}

		change := models.NewChange(len(changes) + 1)
		g.collect(change, root, referencedBy)
		Normalize(change, g.priority)
		changes = append(changes, change)

		g.log.WithFields(logrus.Fields{
			"change":  change.ID,
			"ref":     change.RefNumber,
			"type":    change.RefType,
			"skip":    change.Skip,
			"commits": len(change.Commits),
		}).Debug("Grouped change")
	}
	return changes
}

// collect walks the reference graph from root with an explicit stack
func (g *Grouper) collect(change *models.Change, root *models.IssueRecord, referencedBy map[int][]int) {
	stack := []node{{issue: root.Number}}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.sha != "" {
			commit, ok := g.store.Commit(n.sha)
			if !ok || commit.Grouped() {
				continue
			}
			commit.ChangeID = change.ID
			change.Commits = append(change.Commits, commit)
			if !commit.Skipped() {
				change.AddAuthor(commit.Author)
			}

			for _, num := range commit.IssueRefs.Sorted() {
				stack = append(stack, node{issue: num})
			}
			for _, num := range commit.PullRequestRefs.Sorted() {
				stack = append(stack, node{issue: num})
			}
			continue
		}

		rec, ok := g.store.Issue(n.issue)
		if !ok || !rec.Relevant() || rec.Grouped() {
			continue
		}
		rec.ChangeID = change.ID
		if rec.Kind() == models.RefTypePullRequest {
			change.PullRequests = append(change.PullRequests, rec)
		} else {
			change.Issues = append(change.Issues, rec)
		}

		for _, sha := range rec.Commits.Sorted() {
			stack = append(stack, node{sha: sha})
		}
		for _, num := range rec.ReferencedIssues.Sorted() {
			stack = append(stack, node{issue: num})
		}
		for _, num := range referencedBy[rec.Number] {
			stack = append(stack, node{issue: num})
		}
	}

	sort.Slice(change.Issues, func(i, j int) bool { return change.Issues[i].Number < change.Issues[j].Number })
	sort.Slice(change.PullRequests, func(i, j int) bool { return change.PullRequests[i].Number < change.PullRequests[j].Number })
	sort.SliceStable(change.Commits, func(i, j int) bool { return change.Commits[i].CommitTime.Before(change.Commits[j].CommitTime) })
}

// reverseReferences maps an issue number to the records that mention it
func (g *Grouper) reverseReferences() map[int][]int {
	out := make(map[int][]int)
	for _, rec := range g.store.Issues() {
		for _, ref := range rec.ReferencedIssues.Sorted() {
			out[ref] = append(out[ref], rec.Number)
		}
	}
	return out
}
