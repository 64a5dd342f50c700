package linking

import (
	"regexp"
	"strings"

	"github.com/webtide/changelog-go/internal/models"
)

// Normalize picks the canonical number, type and title of a change. A
// change without any non-skipped issue or pull request is marked skip.
func Normalize(c *models.Change, priority TitlePriority) {
	hasIssues := len(c.Issues) > 0
	hasPRs := len(c.PullRequests) > 0

	var found bool
	switch {
	case hasIssues && hasPRs:
		if priority == PriorityPullRequest {
			found = normalizeByPR(c, true) || normalizeByIssue(c)
		} else {
			found = normalizeByIssue(c) || normalizeByPR(c, true)
		}
	case hasIssues:
		found = normalizeByIssue(c)
	case hasPRs:
		found = normalizeByPR(c, false)
	}

	if !found {
		c.Skip = true
	}
}

func normalizeByIssue(c *models.Change) bool {
	ref := firstNotSkipped(c.Issues)
	if ref == nil {
		return false
	}
	c.RefNumber = ref.Number
	c.RefType = models.RefTypeIssue
	c.RefTitle = CleanTitle(ref.Title())
	c.Associated = models.NumberSet{}
	return true
}

func normalizeByPR(c *models.Change, associateIssues bool) bool {
	ref := firstNotSkipped(c.PullRequests)
	if ref == nil {
		return false
	}
	c.RefNumber = ref.Number
	c.RefType = models.RefTypePullRequest
	c.RefTitle = CleanTitle(ref.Title())
	c.Associated = models.NumberSet{}
	if associateIssues {
		for _, issue := range c.Issues {
			if !issue.Skipped() {
				c.Associated.Add(issue.Number)
			}
		}
	}
	return true
}

func firstNotSkipped(recs []*models.IssueRecord) *models.IssueRecord {
	for _, rec := range recs {
		if !rec.Skipped() {
			return rec
		}
	}
	return nil
}

var (
	leadingRefPhrase  = regexp.MustCompile(`(?i)^\s*(?:issue #?|fixe[sd] #?|fix #?|resolve[sd] #?)\d{3,6}\b`)
	leadingPunctSpace = regexp.MustCompile(`^[\s.:\-]+`)
)

// CleanTitle drops leading "Fixes #123", "Issue #123" style phrases and the
// punctuation that follows them
func CleanTitle(title string) string {
	for {
		next := leadingRefPhrase.ReplaceAllString(title, "")
		next = leadingPunctSpace.ReplaceAllString(next, "")
		if next == title {
			return strings.TrimSpace(next)
		}
		title = next
	}
}
