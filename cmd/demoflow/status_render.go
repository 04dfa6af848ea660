package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"demoflow/internal/api"
	"demoflow/internal/summary"
)

const (
	markerCurrent   = ">"
	markerCompleted = "x"
	markerOpen      = "o"
	markerLocked    = "-"
)

type sidebarStyles struct {
	group     lipgloss.Style
	current   lipgloss.Style
	completed lipgloss.Style
	locked    lipgloss.Style
	badge     lipgloss.Style
	warn      lipgloss.Style
}

func newSidebarStyles(colorize bool) sidebarStyles {
	if !colorize {
		plain := lipgloss.NewStyle()
		return sidebarStyles{plain, plain, plain, plain, plain, plain}
	}
	return sidebarStyles{
		group:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		current:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		completed: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		locked:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		badge:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("14")),
		warn:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

var titleCaser = cases.Title(language.English)

func stateLabel(state string) string {
	state = strings.TrimSpace(strings.ReplaceAll(state, "_", " "))
	if state == "" {
		return "Idle"
	}
	return titleCaser.String(state)
}

// renderSidebar writes the session as the workflow sidebar plus the playback
// line.
func renderSidebar(view api.SessionView, colorize bool) string {
	st := newSidebarStyles(colorize)
	var b strings.Builder

	fmt.Fprintf(&b, "Session %s  step %d/%d  %s\n", view.ID, view.Workflow.Current+1, view.Workflow.Total, view.Workflow.CurrentLabel)
	for _, group := range view.Groups {
		b.WriteString("\n")
		b.WriteString(st.group.Render(group.Label))
		b.WriteString("\n")
		for _, step := range group.Steps {
			b.WriteString(renderStepLine(step, st))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(renderPlaybackLine(view.Playback, st))
	b.WriteString("\n")
	if view.Decode != nil {
		fmt.Fprintf(&b, "Decode: %s %s  eta %s\n",
			stateLabel(view.Decode.State),
			summary.FormatPercent(view.Decode.Progress),
			fallback(view.Decode.ETA, summary.Missing),
		)
	}
	return b.String()
}

func renderStepLine(step api.StepView, st sidebarStyles) string {
	marker, style := markerOpen, lipgloss.NewStyle()
	switch {
	case step.Current:
		marker, style = markerCurrent, st.current
	case step.Completed:
		marker, style = markerCompleted, st.completed
	case !step.Reachable:
		marker, style = markerLocked, st.locked
	}
	line := style.Render(fmt.Sprintf("  %s %2d  %s", marker, step.Index, step.Label))
	if len(step.Badge) == 0 {
		return line
	}
	parts := make([]string, 0, len(step.Badge))
	for _, f := range step.Badge {
		parts = append(parts, f.Label+" "+f.Value)
	}
	return line + "  " + st.badge.Render("["+strings.Join(parts, ", ")+"]")
}

func renderPlaybackLine(pb api.PlaybackView, st sidebarStyles) string {
	state := "paused"
	switch {
	case !pb.Transport.AllReady:
		state = "loading"
	case pb.Transport.Stalled:
		state = "stalled"
	case pb.Transport.Playing:
		state = "playing"
	}
	ready := 0
	var failed []string
	for _, s := range pb.Streams {
		if s.Ready {
			ready++
		}
		if s.Error != "" {
			failed = append(failed, s.Name)
		}
	}
	line := fmt.Sprintf("Playback: %s  %s / %s  ready %d/%d",
		stateLabel(state),
		formatClock(pb.Transport.CurrentTime),
		formatClock(pb.Transport.Duration),
		ready, len(pb.Streams),
	)
	if len(failed) > 0 {
		line += "  " + st.warn.Render("failed: "+strings.Join(failed, ", "))
	}
	return line
}

func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const statusLabelWidth = 20

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", statusText)
	if !colorize {
		return base
	}
	return lipgloss.NewStyle().Foreground(statusKindColor(kind)).Render(base)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) lipgloss.Color {
	switch kind {
	case statusOK:
		return lipgloss.Color("10")
	case statusWarn:
		return lipgloss.Color("11")
	case statusError:
		return lipgloss.Color("9")
	default:
		return lipgloss.Color("12")
	}
}
