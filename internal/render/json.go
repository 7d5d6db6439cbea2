package render

import (
	"encoding/json"
	"fmt"

	"github.com/leeovery/gittask/internal/task"
)

// JSONFormatter renders indented JSON with snake_case keys. Lists are
// always arrays, never null.
type JSONFormatter struct{}

type jsonTask struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Kind     string   `json:"kind"`
	Due      string   `json:"due,omitempty"`
	Tags     []string `json:"tags"`
}

type jsonTaskDetail struct {
	jsonTask
	Created          string `json:"created"`
	Updated          string `json:"updated"`
	CompletionCommit string `json:"completion_commit,omitempty"`
	Description      string `json:"description"`
}

type jsonProjectError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type jsonStats struct {
	Total      int            `json:"total"`
	Pending    int            `json:"pending"`
	InProgress int            `json:"in_progress"`
	Completed  int            `json:"completed"`
	Archived   int            `json:"archived"`
	Overdue    int            `json:"overdue"`
	ByKind     map[string]int `json:"by_kind"`
	ByPriority map[string]int `json:"by_priority"`
}

type jsonProjectStats struct {
	Project string `json:"project"`
	jsonStats
}

func newJSONTask(r TaskRow) jsonTask {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return jsonTask{ID: r.ID, Title: r.Title, Status: r.Status, Priority: r.Priority, Kind: r.Kind, Due: r.Due, Tags: tags}
}

func newJSONStats(s task.Stats) jsonStats {
	out := jsonStats{
		Total:      s.Total,
		Pending:    s.Pending,
		InProgress: s.InProgress,
		Completed:  s.Completed,
		Archived:   s.Archived,
		Overdue:    s.Overdue,
		ByKind:     map[string]int{},
		ByPriority: map[string]int{},
	}
	for i, n := range kindCounts(s) {
		out.ByKind[string(task.Kinds[i])] = n
	}
	for i, p := range task.Priorities {
		out.ByPriority[string(p)] = s.ByPriority[i]
	}
	return out
}

func newJSONErrors(errs []ProjectErrorRow) []jsonProjectError {
	out := make([]jsonProjectError, 0, len(errs))
	for _, e := range errs {
		out = append(out, jsonProjectError(e))
	}
	return out
}

func (f *JSONFormatter) FormatTaskList(data *TaskList) string {
	tasks := make([]jsonTask, 0, len(data.Tasks))
	for _, r := range data.Tasks {
		tasks = append(tasks, newJSONTask(r))
	}
	if data.Errors == nil {
		return writeJSON(tasks)
	}
	return writeJSON(struct {
		Tasks  []jsonTask         `json:"tasks"`
		Errors []jsonProjectError `json:"errors"`
	}{tasks, newJSONErrors(data.Errors)})
}

func (f *JSONFormatter) FormatTaskDetail(d *TaskDetail) string {
	return writeJSON(jsonTaskDetail{
		jsonTask:         newJSONTask(d.TaskRow),
		Created:          d.Created,
		Updated:          d.Updated,
		CompletionCommit: d.CompletionCommit,
		Description:      d.Description,
	})
}

func (f *JSONFormatter) FormatTransition(d *TransitionData) string {
	return writeJSON(struct {
		ID     string `json:"id"`
		From   string `json:"from"`
		To     string `json:"to"`
		Commit string `json:"completion_commit,omitempty"`
		Notice string `json:"notice,omitempty"`
	}{d.ID, d.From, d.To, d.Commit, d.Notice})
}

func (f *JSONFormatter) FormatStats(d *StatsData) string {
	if d.Projects == nil {
		return writeJSON(newJSONStats(d.Stats))
	}
	projects := make([]jsonProjectStats, 0, len(d.Projects))
	for _, p := range d.Projects {
		projects = append(projects, jsonProjectStats{Project: p.Label, jsonStats: newJSONStats(p.Stats)})
	}
	return writeJSON(struct {
		Totals   jsonStats          `json:"totals"`
		Projects []jsonProjectStats `json:"projects"`
		Errors   []jsonProjectError `json:"errors"`
	}{newJSONStats(d.Stats), projects, newJSONErrors(d.Errors)})
}

func (f *JSONFormatter) FormatProjects(rows []ProjectRow) string {
	type jsonProject struct {
		Label string `json:"label"`
		Path  string `json:"path"`
		Open  int    `json:"open"`
		Total int    `json:"total"`
		Error string `json:"error,omitempty"`
	}
	out := make([]jsonProject, 0, len(rows))
	for _, r := range rows {
		out = append(out, jsonProject(r))
	}
	return writeJSON(out)
}

func (f *JSONFormatter) FormatMessage(msg string) string {
	return writeJSON(map[string]string{"message": msg})
}

func writeJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}\n", err.Error())
	}
	return string(data) + "\n"
}
