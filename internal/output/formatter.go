package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter renders a report
type Formatter interface {
	Format(report *Report, w io.Writer) error
}

// Format names an output format
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// NewFormatter returns the formatter for format, markdown by default
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatText:
		return &TextFormatter{}
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &MarkdownFormatter{}
	}
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "md":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// MarkdownFormatter writes the changelog file
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(report *Report, w io.Writer) error {
	var sb strings.Builder

	if len(report.Community) > 0 {
		if report.Project != "" {
			sb.WriteString(fmt.Sprintf("# Special Thanks to the following %s community members\n\n", report.Project))
		} else {
			sb.WriteString("# Special Thanks to the following community members\n\n")
		}
		for _, c := range report.Community {
			sb.WriteString("* ")
			sb.WriteString(contributorLabel(c))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("# Changelog\n\n")
	for _, line := range report.Lines {
		sb.WriteString("* ")
		sb.WriteString(formatLine(line))
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// TextFormatter prints one line per change, for terminals
type TextFormatter struct{}

func (f *TextFormatter) Format(report *Report, w io.Writer) error {
	for _, line := range report.Lines {
		if _, err := fmt.Fprintln(w, formatLine(line)); err != nil {
			return err
		}
	}
	if len(report.Community) > 0 {
		names := make([]string, 0, len(report.Community))
		for _, c := range report.Community {
			names = append(names, c.Display)
		}
		if _, err := fmt.Fprintf(w, "\nCommunity: %s\n", strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter writes the report as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(report *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func formatLine(line Line) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d - %s", line.Number, line.Title))

	if len(line.Associated) > 0 {
		refs := make([]string, 0, len(line.Associated))
		for _, n := range line.Associated {
			refs = append(refs, fmt.Sprintf("#%d", n))
		}
		sb.WriteString(fmt.Sprintf(" (resolves %s)", strings.Join(refs, ", ")))
	}

	if len(line.Authors) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(line.Authors, ", ")))
	}
	return sb.String()
}

func contributorLabel(c Contributor) string {
	if c.Name != "" && c.Name != c.Display {
		return fmt.Sprintf("%s (%s)", c.Display, c.Name)
	}
	return c.Display
}
