package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/git-pkgs/pyintel"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleLink    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconBranch  = "├─"
	iconLast    = "└─"
)

// printer writes either styled text or JSON to one writer.
type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) title(format string, args ...any) {
	fmt.Fprintln(p.w, styleTitle.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) field(label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintln(p.w, "  "+styleLabel.Render(label)+value)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, styleSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func (p *printer) warning(format string, args ...any) {
	fmt.Fprintln(p.w, styleWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) failure(format string, args ...any) {
	fmt.Fprintln(p.w, styleError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func (p *printer) info(format string, args ...any) {
	fmt.Fprintln(p.w, styleDim.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// emit writes v as indented JSON.
func (p *printer) emit(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func count(n int64) string {
	return styleNumber.Render(humanize.Comma(n))
}

func size(n int64) string {
	if n <= 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}

func link(url string) string {
	if url == "" {
		return ""
	}
	return styleLink.Render(url)
}

func severityStyle(severity string) lipgloss.Style {
	switch strings.ToUpper(severity) {
	case "CRITICAL", "HIGH":
		return styleError
	case "MODERATE", "MEDIUM":
		return styleWarning
	}
	return styleDim
}

func ratingStyle(r pyintel.Rating) lipgloss.Style {
	switch r {
	case pyintel.Excellent, pyintel.Good:
		return styleSuccess
	case pyintel.Fair:
		return styleWarning
	}
	return styleError
}

func riskStyle(r pyintel.Risk) lipgloss.Style {
	switch r {
	case pyintel.RiskLow:
		return styleSuccess
	case pyintel.RiskMedium:
		return styleWarning
	}
	return styleError
}
