package render

import (
	"strconv"

	"github.com/leeovery/gittask/internal/aggregate"
	"github.com/leeovery/gittask/internal/registry"
	"github.com/leeovery/gittask/internal/task"
)

// TaskRow is one task in list output.
type TaskRow struct {
	ID       string
	Title    string
	Status   string
	Priority string
	Kind     string
	Due      string
	Tags     []string
}

// TaskList is list output: the tasks and, for aggregated lists, the
// projects that could not be read.
type TaskList struct {
	Tasks  []TaskRow
	Errors []ProjectErrorRow
}

// TaskDetail is one task with every field.
type TaskDetail struct {
	TaskRow
	Created          string
	Updated          string
	CompletionCommit string
	Description      string
}

// TransitionData describes a status change. Notice is set when the change
// succeeded with a caveat, such as a completion without a commit.
type TransitionData struct {
	ID     string
	From   string
	To     string
	Commit string
	Notice string
}

// StatsData holds counts for one store, or totals plus per-project counts
// for an aggregated query.
type StatsData struct {
	Stats    task.Stats
	Projects []ProjectStatsRow
	Errors   []ProjectErrorRow
}

// ProjectStatsRow is one project's counts in aggregated stats.
type ProjectStatsRow struct {
	Label string
	Stats task.Stats
}

// ProjectErrorRow is a project skipped by an aggregated query.
type ProjectErrorRow struct {
	Path  string
	Error string
}

// ProjectRow is one registered project with its health.
type ProjectRow struct {
	Label string
	Path  string
	Open  int
	Total int
	Error string
}

// NewTaskRow builds a row for t shown under id.
func NewTaskRow(id string, t task.Task) TaskRow {
	row := TaskRow{
		ID:       id,
		Title:    t.Title,
		Status:   string(t.Status),
		Priority: string(t.Priority),
		Kind:     string(t.Kind),
		Tags:     t.Tags,
	}
	if t.Due != nil {
		row.Due = t.Due.String()
	}
	return row
}

// NewTaskDetail builds detail output for t shown under id.
func NewTaskDetail(id string, t task.Task) *TaskDetail {
	return &TaskDetail{
		TaskRow:          NewTaskRow(id, t),
		Created:          task.FormatTimestamp(t.Created),
		Updated:          task.FormatTimestamp(t.Updated),
		CompletionCommit: t.CompletionCommit,
		Description:      t.Description,
	}
}

// ListFromTasks builds list output for one store, with plain ids.
func ListFromTasks(tasks []task.Task) *TaskList {
	list := &TaskList{Tasks: make([]TaskRow, 0, len(tasks))}
	for _, t := range tasks {
		list.Tasks = append(list.Tasks, NewTaskRow(strconv.FormatUint(t.ID, 10), t))
	}
	return list
}

// ListFromAggregate builds list output across projects, with qualified ids.
func ListFromAggregate(res aggregate.ListResult) *TaskList {
	list := &TaskList{Tasks: make([]TaskRow, 0, len(res.Items)), Errors: errorRows(res.Errors)}
	for _, it := range res.Items {
		list.Tasks = append(list.Tasks, NewTaskRow(it.QualifiedID(), it.Task))
	}
	return list
}

// StatsFromAggregate builds stats output across projects.
func StatsFromAggregate(res aggregate.StatsResult) *StatsData {
	data := &StatsData{
		Stats:    res.Totals,
		Projects: make([]ProjectStatsRow, 0, len(res.PerProject)),
		Errors:   errorRows(res.Errors),
	}
	for _, p := range res.PerProject {
		data.Projects = append(data.Projects, ProjectStatsRow{Label: p.Label, Stats: p.Stats})
	}
	return data
}

// ProjectRows builds project listing output from checked projects.
func ProjectRows(projects []registry.Project) []ProjectRow {
	rows := make([]ProjectRow, 0, len(projects))
	for _, p := range projects {
		row := ProjectRow{Label: p.Label, Path: p.Path, Open: p.Health.Open, Total: p.Health.Total}
		if p.Health.Err != nil {
			row.Error = p.Health.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func errorRows(errs []*task.ProjectError) []ProjectErrorRow {
	var rows []ProjectErrorRow
	for _, e := range errs {
		rows = append(rows, ProjectErrorRow{Path: e.Path, Error: e.Cause.Error()})
	}
	return rows
}

// kindCounts pairs each kind with its count, in Kinds order.
func kindCounts(s task.Stats) []int {
	return []int{s.Tasks, s.Todos, s.Ideas}
}
