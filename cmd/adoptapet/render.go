package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kailas-cloud/adoptapet/internal/domain/search/result"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// render writes a search response as two boxed sections.
func render(w io.Writer, r *result.Response) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%s search: %s", r.Kind, r.Query)))
	b.WriteString("\n")
	b.WriteString(summaryStyle.Render(fmt.Sprintf("%d candidates in %s (id %s)",
		r.TotalCandidates, r.Elapsed.Round(time.Millisecond), r.SearchID)))
	b.WriteString("\n")
	if r.Degraded {
		names := make([]string, 0, len(r.FailedPartitions))
		for _, p := range r.FailedPartitions {
			names = append(names, string(p))
		}
		b.WriteString(warnStyle.Render("partial results, unavailable: " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}

	b.WriteString(section("Listings", r.Listings))
	b.WriteString("\n")
	b.WriteString(section("Images", r.Images))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func section(title string, items []result.ScoredItem) string {
	lines := []string{sectionStyle.Render(fmt.Sprintf("%s (%d)", title, len(items)))}
	if len(items) == 0 {
		lines = append(lines, summaryStyle.Render("no matches"))
	}
	for i, it := range items {
		lines = append(lines, fmt.Sprintf("%2d. %s %s  %s",
			i+1, scoreStyle.Render(fmt.Sprintf("%.3f", it.Score)), it.Pet.Name, describe(it)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func describe(it result.ScoredItem) string {
	parts := []string{it.Pet.Species}
	if it.Pet.Breed != "" {
		parts = append(parts, it.Pet.Breed)
	}
	if it.Pet.AgeMonths != nil {
		parts = append(parts, fmt.Sprintf("%dmo", *it.Pet.AgeMonths))
	}
	parts = append(parts, "["+string(it.Partition)+" "+it.Pet.ID+"]")
	return strings.Join(parts, " · ")
}
