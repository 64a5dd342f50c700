// Package refscan extracts same-repository issue and pull request numbers
// from commit messages and tracker text.
package refscan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/webtide/changelog-go/internal/models"
)

// BotMarker identifies bodies written by the dependency update bot. They
// list upstream release notes full of unrelated numbers.
const BotMarker = "@dependabot"

const (
	minDigits = 3
	maxDigits = 6
)

var (
	// #1234 at the start of a line
	lineStartRef = regexp.MustCompile(`(?m)^#(\d+)`)
	// #1234 not glued to a word or a closing tag: "(#1234)" but not "org/repo#1234"
	bareRef = regexp.MustCompile(`[^\p{L}\p{N}>]#(\d+)`)
	// "Issue 1234"
	issueWordRef = regexp.MustCompile(`\bIssue (\d+)`)

	// capitalized verbs only, so prose such as "fixed 250 flaky tests" is ignored
	resolutionRef = regexp.MustCompile(`\b(?:Close[sd]|Fixe[sd]|Fix|Resolve[sd]) #?(\d+)`)
)

// Scan returns the issue numbers referenced in text
func Scan(text string) models.NumberSet {
	found := models.NumberSet{}
	if skipText(text) {
		return found
	}
	collect(found, lineStartRef, text)
	collect(found, bareRef, text)
	collect(found, issueWordRef, text)
	return found
}

// ScanResolutions returns the numbers named after a closing verb such as
// "Fixes #1234" or "Resolved 1234"
func ScanResolutions(text string) models.NumberSet {
	found := models.NumberSet{}
	if skipText(text) {
		return found
	}
	collect(found, resolutionRef, text)
	return found
}

// ScanMessage collects the references of a commit message or an issue:
// plain references anywhere, closing verbs only in the body
func ScanMessage(title, body string) models.NumberSet {
	found := Scan(title)
	found.AddAll(Scan(body))
	found.AddAll(ScanResolutions(body))
	return found
}

func skipText(text string) bool {
	return strings.Contains(text, BotMarker)
}

func collect(into models.NumberSet, re *regexp.Regexp, text string) {
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		digits := text[m[2]:m[3]]
		if len(digits) < minDigits || len(digits) > maxDigits {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		into.Add(n)
	}
}
