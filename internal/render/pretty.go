package render

import (
	"fmt"
	"strings"

	"github.com/leeovery/gittask/internal/task"
)

// PrettyFormatter renders aligned, human-readable output for terminals.
type PrettyFormatter struct{}

const maxTitleWidth = 50

func (f *PrettyFormatter) FormatTaskList(data *TaskList) string {
	var sb strings.Builder
	if len(data.Tasks) == 0 {
		sb.WriteString("No tasks found.\n")
	} else {
		headers := []string{"ID", "STATUS", "PRI", "KIND", "DUE", "TITLE"}
		rows := make([][]string, len(data.Tasks))
		for i, r := range data.Tasks {
			title := truncateTitle(r.Title)
			if len(r.Tags) > 0 {
				title += " [" + strings.Join(r.Tags, ", ") + "]"
			}
			rows[i] = []string{r.ID, r.Status, r.Priority, r.Kind, dash(r.Due), title}
		}
		writeTable(&sb, headers, rows)
	}
	writeSkipped(&sb, data.Errors)
	return sb.String()
}

func (f *PrettyFormatter) FormatTaskDetail(d *TaskDetail) string {
	var sb strings.Builder
	fields := [][2]string{
		{"ID", d.ID},
		{"Title", d.Title},
		{"Status", d.Status},
		{"Priority", d.Priority},
		{"Kind", d.Kind},
	}
	if len(d.Tags) > 0 {
		fields = append(fields, [2]string{"Tags", strings.Join(d.Tags, ", ")})
	}
	if d.Due != "" {
		fields = append(fields, [2]string{"Due", d.Due})
	}
	fields = append(fields, [2]string{"Created", d.Created}, [2]string{"Updated", d.Updated})
	if d.CompletionCommit != "" {
		fields = append(fields, [2]string{"Commit", d.CompletionCommit})
	}

	width := 0
	for _, kv := range fields {
		width = max(width, len(kv[0]))
	}
	for _, kv := range fields {
		fmt.Fprintf(&sb, "%-*s  %s\n", width+1, kv[0]+":", kv[1])
	}
	if d.Description != "" {
		sb.WriteString("\nDescription:\n")
		for _, line := range strings.Split(d.Description, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) FormatTransition(d *TransitionData) string {
	return transitionText(d)
}

func (f *PrettyFormatter) FormatStats(d *StatsData) string {
	s := d.Stats
	var sb strings.Builder

	fmt.Fprintf(&sb, "Total:  %d\n", s.Total)

	sb.WriteString("\nStatus:\n")
	statusRows := []struct {
		label string
		n     int
	}{
		{"Pending", s.Pending},
		{"In Progress", s.InProgress},
		{"Completed", s.Completed},
		{"Archived", s.Archived},
		{"Overdue", s.Overdue},
	}
	w := numWidth(s.Pending, s.InProgress, s.Completed, s.Archived, s.Overdue)
	for _, r := range statusRows {
		fmt.Fprintf(&sb, "  %-14s%*d\n", r.label+":", w, r.n)
	}

	sb.WriteString("\nKind:\n")
	kinds := kindCounts(s)
	w = numWidth(kinds...)
	for i, n := range kinds {
		fmt.Fprintf(&sb, "  %-14s%*d\n", string(task.Kinds[i])+":", w, n)
	}

	sb.WriteString("\nPriority:\n")
	w = numWidth(s.ByPriority[:]...)
	for i, p := range task.Priorities {
		fmt.Fprintf(&sb, "  %-14s%*d\n", string(p)+":", w, s.ByPriority[i])
	}

	if len(d.Projects) > 0 {
		sb.WriteString("\n")
		rows := make([][]string, len(d.Projects))
		for i, p := range d.Projects {
			rows[i] = []string{
				p.Label,
				fmt.Sprint(p.Stats.Total),
				fmt.Sprint(p.Stats.Open()),
				fmt.Sprint(p.Stats.Completed),
				fmt.Sprint(p.Stats.Overdue),
			}
		}
		writeTable(&sb, []string{"PROJECT", "TOTAL", "OPEN", "DONE", "OVERDUE"}, rows)
	}
	writeSkipped(&sb, d.Errors)
	return sb.String()
}

func (f *PrettyFormatter) FormatProjects(rows []ProjectRow) string {
	if len(rows) == 0 {
		return "No projects linked.\n"
	}
	table := make([][]string, len(rows))
	for i, r := range rows {
		open, total := fmt.Sprint(r.Open), fmt.Sprint(r.Total)
		if r.Error != "" {
			open, total = "-", "-"
		}
		table[i] = []string{r.Label, open, total, r.Path}
	}
	var sb strings.Builder
	writeTable(&sb, []string{"PROJECT", "OPEN", "TOTAL", "PATH"}, table)

	var broken []ProjectErrorRow
	for _, r := range rows {
		if r.Error != "" {
			broken = append(broken, ProjectErrorRow{Path: r.Path, Error: r.Error})
		}
	}
	if len(broken) > 0 {
		sb.WriteString("\nUnavailable:\n")
		for _, e := range broken {
			fmt.Fprintf(&sb, "  %s: %s\n", e.Path, e.Error)
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) FormatMessage(msg string) string {
	return msg + "\n"
}

// writeTable writes headers and rows as left-aligned columns separated by
// two spaces. The last column is never padded.
func writeTable(sb *strings.Builder, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}
	writeRow := func(cells []string) {
		last := len(cells) - 1
		for i, cell := range cells {
			if i == last {
				sb.WriteString(cell)
			} else {
				fmt.Fprintf(sb, "%-*s  ", widths[i], cell)
			}
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
}

func writeSkipped(sb *strings.Builder, errs []ProjectErrorRow) {
	if len(errs) == 0 {
		return
	}
	sb.WriteString("\nSkipped projects:\n")
	for _, e := range errs {
		fmt.Fprintf(sb, "  %s: %s\n", e.Path, e.Error)
	}
}

// truncateTitle shortens a title to maxTitleWidth runes with a trailing
// ellipsis.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= maxTitleWidth {
		return title
	}
	return string(runes[:maxTitleWidth-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// numWidth returns the display width of the widest number.
func numWidth(nums ...int) int {
	w := 1
	for _, n := range nums {
		w = max(w, len(fmt.Sprint(n)))
	}
	return w
}
