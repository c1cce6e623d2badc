package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"livesub/internal/api"
	"livesub/internal/evaluation"
	"livesub/internal/queue"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + line + ansiReset
		}
	}
	return line
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

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLabel renders a task status for humans, e.g. "Running".
func statusLabel(status string) string {
	if status == "" {
		return "-"
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(status, "_", " "))
}

func taskStatusKind(status string) statusKind {
	switch queue.Status(status) {
	case queue.StatusCompleted:
		return statusOK
	case queue.StatusCancelled:
		return statusWarn
	case queue.StatusFailed:
		return statusError
	default:
		return statusInfo
	}
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatAPITime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderTaskTable(tasks []api.TaskView) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			shortID(t.ID),
			t.FileName,
			statusLabel(t.Status),
			yesNo(t.Translate),
			formatSeconds(t.Position),
			strconv.Itoa(t.CuesEmitted),
			formatAPITime(t.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "File", "Status", "Translate", "Position", "Cues", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func renderTaskDetail(t api.TaskView, colorize bool) []string {
	lines := renderSectionHeader("Task "+t.ID, colorize)
	lines = append(lines,
		renderStatusLine("Status", taskStatusKind(t.Status), statusLabel(t.Status), colorize),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "File:", t.FileName),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Translate:", yesNo(t.Translate)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Start:", formatSeconds(t.StartFrom)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Position:", formatSeconds(t.Position)),
		fmt.Sprintf("%s%-*s %d", statusIndent, statusLabelWidth, "Cues:", t.CuesEmitted),
	)
	if t.Fingerprint != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Fingerprint:", t.Fingerprint))
	}
	if t.WorkDir != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Work dir:", t.WorkDir))
	}
	lines = append(lines,
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Created:", formatAPITime(t.CreatedAt)),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Updated:", formatAPITime(t.UpdatedAt)),
	)
	if t.FinishedAt != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Finished:", formatAPITime(t.FinishedAt)))
	}
	if t.ErrorMessage != "" {
		lines = append(lines, renderStatusLine("Error", statusError, t.ErrorMessage, colorize))
	}
	return lines
}

func renderDaemonStatus(st api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if st.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", st.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "not running", colorize))
	}
	wf := st.Workflow
	workflowKind := statusOK
	if !wf.Running {
		workflowKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("Workflow", workflowKind, fmt.Sprintf("%d of %d slots busy", wf.Active, wf.Capacity), colorize),
		renderStatusLine("Queue DB", statusInfo, st.QueueDBPath, colorize),
		renderStatusLine("Lock file", statusInfo, st.LockFilePath, colorize),
	)
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, wf.LastError, colorize))
	}

	if len(wf.QueueStats) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Tasks", colorize)...)
		statuses := make([]string, 0, len(wf.QueueStats))
		for status := range wf.QueueStats {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			lines = append(lines, renderStatusLine(statusLabel(status), taskStatusKind(status), strconv.Itoa(wf.QueueStats[status]), colorize))
		}
	}

	if len(wf.StageHealth) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Stages", colorize)...)
		for _, h := range wf.StageHealth {
			kind := statusOK
			if !h.Ready {
				kind = statusError
			}
			lines = append(lines, renderStatusLine(h.Name, kind, h.Detail, colorize))
		}
	}
	return lines
}

func renderBenchmarkTable(benchmarks []evaluation.Benchmark) string {
	rows := make([][]string, 0, len(benchmarks))
	for _, b := range benchmarks {
		rows = append(rows, []string{
			b.Name,
			fmt.Sprintf("%.3f", b.ChrF),
			fmt.Sprintf("%.1f", b.BLEU),
			fmt.Sprintf("%.3f", b.TER),
			strconv.Itoa(b.Sentences),
		})
	}
	return renderTable(
		[]string{"Benchmark", "chrF", "BLEU", "TER", "Sentences"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
