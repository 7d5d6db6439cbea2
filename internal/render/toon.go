package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/task"
	toon "github.com/toon-format/toon-go"
)

// ToonFormatter renders TOON (Token-Oriented Object Notation): schema
// headers followed by compact rows, for agents reading the output.
type ToonFormatter struct{}

const taskListSchema = "tasks[%d]{id,title,status,priority,kind,due,tags}:"

func (f *ToonFormatter) FormatTaskList(data *TaskList) string {
	var sections []string
	if len(data.Tasks) == 0 {
		sections = append(sections, fmt.Sprintf(taskListSchema, 0)+"\n")
	} else {
		objects := make([]toon.Object, len(data.Tasks))
		for i, r := range data.Tasks {
			objects[i] = toon.NewObject(
				toon.Field{Key: "id", Value: toonID(r.ID)},
				toon.Field{Key: "title", Value: r.Title},
				toon.Field{Key: "status", Value: r.Status},
				toon.Field{Key: "priority", Value: r.Priority},
				toon.Field{Key: "kind", Value: r.Kind},
				toon.Field{Key: "due", Value: r.Due},
				toon.Field{Key: "tags", Value: strings.Join(r.Tags, " ")},
			)
		}
		sections = append(sections, marshalTable("tasks", objects))
	}
	if len(data.Errors) > 0 {
		sections = append(sections, errorSection(data.Errors))
	}
	return strings.Join(sections, "\n")
}

func (f *ToonFormatter) FormatTaskDetail(d *TaskDetail) string {
	fields := []string{"id", "title", "status", "priority", "kind", "tags"}
	values := []string{
		toonIDText(d.ID),
		toonEscapeValue(d.Title),
		d.Status,
		d.Priority,
		d.Kind,
		toonEscapeValue(strings.Join(d.Tags, " ")),
	}
	if d.Due != "" {
		fields = append(fields, "due")
		values = append(values, d.Due)
	}
	fields = append(fields, "created", "updated")
	values = append(values, d.Created, d.Updated)
	if d.CompletionCommit != "" {
		fields = append(fields, "completion_commit")
		values = append(values, d.CompletionCommit)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "task{%s}:\n  %s\n", strings.Join(fields, ","), strings.Join(values, ","))
	if d.Description != "" {
		sb.WriteString("\ndescription:\n")
		for _, line := range strings.Split(d.Description, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

func (f *ToonFormatter) FormatTransition(d *TransitionData) string {
	return transitionText(d)
}

func (f *ToonFormatter) FormatStats(d *StatsData) string {
	s := d.Stats
	sections := []string{
		"stats{total,pending,in_progress,completed,archived,overdue}:\n  " +
			joinInts(s.Total, s.Pending, s.InProgress, s.Completed, s.Archived, s.Overdue) + "\n",
	}

	var kinds strings.Builder
	fmt.Fprintf(&kinds, "by_kind[%d]{kind,count}:\n", len(task.Kinds))
	for i, n := range kindCounts(s) {
		fmt.Fprintf(&kinds, "  %s,%d\n", task.Kinds[i], n)
	}
	sections = append(sections, kinds.String())

	var prios strings.Builder
	fmt.Fprintf(&prios, "by_priority[%d]{priority,count}:\n", len(task.Priorities))
	for i, p := range task.Priorities {
		fmt.Fprintf(&prios, "  %s,%d\n", p, s.ByPriority[i])
	}
	sections = append(sections, prios.String())

	if d.Projects != nil {
		var projects strings.Builder
		fmt.Fprintf(&projects, "projects[%d]{project,total,open,completed,overdue}:\n", len(d.Projects))
		for _, p := range d.Projects {
			fmt.Fprintf(&projects, "  %s,%s\n", toonEscapeValue(p.Label),
				joinInts(p.Stats.Total, p.Stats.Open(), p.Stats.Completed, p.Stats.Overdue))
		}
		sections = append(sections, projects.String())
	}
	if len(d.Errors) > 0 {
		sections = append(sections, errorSection(d.Errors))
	}
	return strings.Join(sections, "\n")
}

func (f *ToonFormatter) FormatProjects(rows []ProjectRow) string {
	if len(rows) == 0 {
		return "projects[0]{label,path,open,total,error}:\n"
	}
	objects := make([]toon.Object, len(rows))
	for i, r := range rows {
		objects[i] = toon.NewObject(
			toon.Field{Key: "label", Value: r.Label},
			toon.Field{Key: "path", Value: r.Path},
			toon.Field{Key: "open", Value: r.Open},
			toon.Field{Key: "total", Value: r.Total},
			toon.Field{Key: "error", Value: r.Error},
		)
	}
	return marshalTable("projects", objects)
}

func (f *ToonFormatter) FormatMessage(msg string) string {
	return msg + "\n"
}

func errorSection(errs []ProjectErrorRow) string {
	objects := make([]toon.Object, len(errs))
	for i, e := range errs {
		objects[i] = toon.NewObject(
			toon.Field{Key: "path", Value: e.Path},
			toon.Field{Key: "error", Value: e.Error},
		)
	}
	return marshalTable("errors", objects)
}

// marshalTable encodes objects as one tabular TOON array under key.
func marshalTable(key string, objects []toon.Object) string {
	doc := toon.NewObject(toon.Field{Key: key, Value: objects})
	result, err := toon.MarshalString(doc)
	if err != nil {
		return fmt.Sprintf("%s: toon marshal error: %v\n", key, err)
	}
	return strings.TrimRight(result, "\n") + "\n"
}

// toonEscapeValue escapes s for a comma-delimited TOON row by letting the
// library encode it inside a one-row table.
func toonEscapeValue(s string) string {
	doc := toon.NewObject(
		toon.Field{Key: "a", Value: []toon.Object{
			toon.NewObject(toon.Field{Key: "v", Value: s}),
		}},
	)
	result, err := toon.MarshalString(doc)
	if err != nil {
		return s
	}
	// "a[1]{v}:\n  <value>"
	lines := strings.SplitN(result, "\n", 2)
	if len(lines) == 2 {
		return strings.TrimSpace(lines[1])
	}
	return s
}

// toonID keeps plain numeric ids as numbers so they are not quoted as
// numeric-looking strings. Qualified ids stay strings.
func toonID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}

func toonIDText(id string) string {
	if n, ok := toonID(id).(uint64); ok {
		return strconv.FormatUint(n, 10)
	}
	return toonEscapeValue(id)
}

func joinInts(nums ...int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// transitionText is the plain-text transition line shared by TOON and
// pretty output.
func transitionText(d *TransitionData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s → %s", d.ID, d.From, d.To)
	if d.Commit != "" {
		fmt.Fprintf(&sb, " (commit %s)", d.Commit)
	}
	sb.WriteString("\n")
	if d.Notice != "" {
		fmt.Fprintf(&sb, "note: %s\n", d.Notice)
	}
	return sb.String()
}
