package output

import (
	"sort"

	"github.com/webtide/changelog-go/internal/models"
)

// Contributor is a non-committer who took part in the release
type Contributor struct {
	Key     string `json:"key"`
	Display string `json:"display"`
	Name    string `json:"name,omitempty"`
}

// Line is one rendered changelog entry
type Line struct {
	Number     int            `json:"number"`
	Type       models.RefType `json:"type"`
	Title      string         `json:"title"`
	Associated []int          `json:"associated,omitempty"`
	Authors    []string       `json:"authors,omitempty"`
}

// Report is the data a formatter renders
type Report struct {
	Project   string        `json:"project,omitempty"`
	Community []Contributor `json:"community"`
	Lines     []Line        `json:"changes"`
}

// BuildReport keeps the non-skipped changes, newest number first, and
// collects the community members among their authors
func BuildReport(project string, changes []*models.Change) *Report {
	report := &Report{Project: project}

	var kept []*models.Change
	for _, c := range changes {
		if !c.Skip {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].RefNumber > kept[j].RefNumber })

	community := make(map[string]Contributor)
	for _, c := range kept {
		line := Line{
			Number:     c.RefNumber,
			Type:       c.RefType,
			Title:      c.RefTitle,
			Associated: c.Associated.Sorted(),
		}
		if len(line.Associated) == 0 {
			line.Associated = nil
		}

		for _, a := range c.Contributors() {
			line.Authors = append(line.Authors, a.DisplayName())
			community[a.Key()] = Contributor{Key: a.Key(), Display: a.DisplayName(), Name: a.Name}
		}
		sort.Strings(line.Authors)

		report.Lines = append(report.Lines, line)
	}

	for _, contributor := range community {
		report.Community = append(report.Community, contributor)
	}
	sort.Slice(report.Community, func(i, j int) bool {
		return report.Community[i].Display < report.Community[j].Display
	})
	return report
}
