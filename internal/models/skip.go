package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SkipReason explains why a record is left out of the changelog
type SkipReason uint8

const (
	SkipMergeCommit SkipReason = iota
	SkipNoInterestingPaths
	SkipExcludedLabel
	SkipInvalidIssueRef
	SkipWrongBaseRef
	SkipExcludedBranch
	SkipNotClosed
	SkipNoRelevantCommits

	skipReasonCount
)

var skipReasonNames = [skipReasonCount]string{
	SkipMergeCommit:        "merge-commit",
	SkipNoInterestingPaths: "no-interesting-paths-left",
	SkipExcludedLabel:      "excluded-label",
	SkipInvalidIssueRef:    "invalid-issue-reference",
	SkipWrongBaseRef:       "wrong-base-ref",
	SkipExcludedBranch:     "excluded-branch",
	SkipNotClosed:          "not-closed",
	SkipNoRelevantCommits:  "no-relevant-commits",
}

func (r SkipReason) String() string {
	if r < skipReasonCount {
		return skipReasonNames[r]
	}
	return fmt.Sprintf("skip(%d)", uint8(r))
}

// ParseSkipReason is the inverse of SkipReason.String
func ParseSkipReason(s string) (SkipReason, error) {
	for i, name := range skipReasonNames {
		if name == s {
			return SkipReason(i), nil
		}
	}
	return 0, fmt.Errorf("unknown skip reason %q", s)
}

// SkipSet is a set of skip reasons. The zero value is empty.
type SkipSet uint16

// Add records reason r
func (s *SkipSet) Add(r SkipReason) {
	*s |= 1 << r
}

func (s SkipSet) Has(r SkipReason) bool {
	return s&(1<<r) != 0
}

// Empty reports whether no reason was recorded
func (s SkipSet) Empty() bool {
	return s == 0
}

// Reasons lists the recorded reasons in declaration order
func (s SkipSet) Reasons() []SkipReason {
	var out []SkipReason
	for r := SkipReason(0); r < skipReasonCount; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s SkipSet) String() string {
	names := make([]string, 0, skipReasonCount)
	for _, r := range s.Reasons() {
		names = append(names, r.String())
	}
	return strings.Join(names, ",")
}

func (s SkipSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, skipReasonCount)
	for _, r := range s.Reasons() {
		names = append(names, r.String())
	}
	return json.Marshal(names)
}

func (s *SkipSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = 0
	for _, name := range names {
		r, err := ParseSkipReason(name)
		if err != nil {
			return err
		}
		s.Add(r)
	}
	return nil
}
