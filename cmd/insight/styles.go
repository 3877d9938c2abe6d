package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// printResponse writes the answer followed by the step log and artifacts.
func printResponse(w io.Writer, resp *agent.Response) {
	fmt.Fprintln(w, resp.Response)

	if len(resp.StepResults) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Steps"))
		for _, step := range resp.StepResults {
			mark := okStyle.Render("✓")
			if !step.Success {
				mark = errStyle.Render("✗")
			}
			line := fmt.Sprintf("  %s %s", mark, step.Tool)
			if step.Reason != "" {
				line += dimStyle.Render(" - " + step.Reason)
			}
			fmt.Fprintln(w, line)
			if !step.Success {
				fmt.Fprintln(w, "    "+errStyle.Render(firstLine(step.Result)))
			}
		}
	}

	if len(resp.Images) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Artifacts"))
		for _, path := range resp.Images {
			fmt.Fprintln(w, "  "+warnStyle.Render(path))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
