// Package render formats query responses for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"signalscout/internal/engine"
	"signalscout/internal/enrich"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#C98A00", Dark: "#F2C94C"}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	scoreStyle  = lipgloss.NewStyle().Bold(true)
	sourceStyle = lipgloss.NewStyle().Foreground(colorGreen)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
)

// Results renders a ranked response with one block per signal.
func Results(resp *engine.Response) string {
	var b strings.Builder

	header := fmt.Sprintf("%s results · intent=%s domain=%s",
		titleStyle.Render("signalscout"), resp.Context.Intent, resp.Context.Domain)
	b.WriteString(header + "\n")
	if resp.Degraded {
		b.WriteString(warnStyle.Render("⚠ degraded: fetch budget expired before all sources finished") + "\n")
	}
	b.WriteString("\n")

	if len(resp.Results) == 0 {
		b.WriteString(dimStyle.Render("no results") + "\n")
		return b.String()
	}

	for i, s := range resp.Results {
		b.WriteString(fmt.Sprintf("%2d. %s %s %s\n",
			i+1,
			scoreStyle.Render(fmt.Sprintf("[%3d]", s.FinalScore)),
			scoreBar(s.FinalScore),
			titleStyle.Render(truncate(s.Title, 70))))
		b.WriteString("    " + dimStyle.Render(s.URL) + "\n")

		meta := sourceStyle.Render(s.SourceID)
		if len(s.DetectedTags) > 0 {
			meta += dimStyle.Render(" · " + strings.Join(s.DetectedTags, ", "))
		}
		if s.ClusterID != "" {
			meta += dimStyle.Render(fmt.Sprintf(" · cluster %s (%d related)", s.ClusterID, len(s.RelatedIDs)))
		}
		b.WriteString("    " + meta + "\n")

		if reason := topAdjustment(s.Adjustments); reason != "" {
			b.WriteString("    " + dimStyle.Render(reason) + "\n")
		}
		b.WriteString("\n")
	}

	footer := fmt.Sprintf("sources: %s", strings.Join(resp.SourcesUsed, ", "))
	if len(resp.SourcesSkipped) > 0 {
		footer += dimStyle.Render(" · skipped: " + strings.Join(resp.SourcesSkipped, ", "))
	}
	footer += dimStyle.Render(fmt.Sprintf(" · %s", resp.Elapsed.Round(time.Millisecond)))
	b.WriteString(footer + "\n")
	return b.String()
}

// Verdict renders a single-URL analysis.
func Verdict(v *engine.Verdict) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s %s\n",
		scoreStyle.Render(fmt.Sprintf("[%3d]", v.Score)),
		scoreBar(v.Score),
		titleStyle.Render(truncate(v.Title, 70))))
	b.WriteString(dimStyle.Render(v.URL) + "\n")
	if len(v.Tags) > 0 {
		b.WriteString(dimStyle.Render("tags: "+strings.Join(v.Tags, ", ")) + "\n")
	}
	if v.WorthReading {
		b.WriteString(sourceStyle.Render(v.Recommendation) + "\n")
	} else {
		b.WriteString(dimStyle.Render(v.Recommendation) + "\n")
	}
	return b.String()
}

// scoreBar paints a ten-cell bar for a 0-100 score.
func scoreBar(score int) string {
	filled := score / 10
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func topAdjustment(adj []enrich.Adjustment) string {
	best := enrich.Adjustment{}
	for _, a := range adj {
		if a.Delta > best.Delta {
			best = a
		}
	}
	if best.Delta <= 0 {
		return ""
	}
	return fmt.Sprintf("+%d %s", best.Delta, best.Name)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
