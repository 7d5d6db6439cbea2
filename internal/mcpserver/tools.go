package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
)

func (s *Server) toolSet() []*tool {
	return []*tool{
		{name: "add_task", description: "Create a task, todo or idea in the current project", schema: addTaskSchema, handle: s.addTask},
		{name: "list_tasks", description: "List tasks with optional filters, in the current project or across linked projects", schema: listTasksSchema, handle: s.listTasks},
		{name: "get_task", description: "Show one task with its description", schema: getTaskSchema, handle: s.getTask},
		{name: "complete_task", description: "Mark one or more tasks completed", schema: completeTaskSchema, handle: s.completeTask},
		{name: "update_task", description: "Change a task's title, description, priority, due date or tags", schema: updateTaskSchema, handle: s.updateTask},
		{name: "delete_task", description: "Delete a task", schema: deleteTaskSchema, handle: s.deleteTask},
		{name: "set_task_status", description: "Move a task to another status", schema: setStatusSchema, handle: s.setTaskStatus},
		{name: "get_stats", description: "Count tasks by status, kind and priority", schema: getStatsSchema, handle: s.getStats},
		{name: "link_project", description: "Register a project for aggregated queries", schema: pathSchema, handle: s.linkProject},
		{name: "unlink_project", description: "Remove a project from the registry", schema: pathSchema, handle: s.unlinkProject},
		{name: "list_projects", description: "List linked projects with their task counts", schema: emptySchema, handle: s.listProjects},
	}
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type addArgs struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Due         string   `json:"due"`
	Tags        []string `json:"tags"`
}

func (s *Server) addTask(_ context.Context, data []byte) (string, error) {
	var args addArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	kind, err := task.ParseKind(args.Kind)
	if err != nil {
		return "", err
	}
	draft := task.Draft{Title: args.Title, Description: args.Description, Kind: kind, Tags: args.Tags}
	if args.Priority != "" {
		if draft.Priority, err = task.ParsePriority(args.Priority); err != nil {
			return "", err
		}
	}
	if args.Due != "" {
		d, err := task.ParseDate(args.Due)
		if err != nil {
			return "", err
		}
		draft.Due = &d
	}

	st, err := s.currentStore()
	if err != nil {
		return "", err
	}
	created, err := st.Create(draft)
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatTaskDetail(render.NewTaskDetail(strconv.FormatUint(created.ID, 10), created)), nil
}

type listArgs struct {
	Kind            string   `json:"kind"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	Tags            []string `json:"tags"`
	Aggregate       bool     `json:"aggregate"`
	IncludeArchived bool     `json:"include_archived"`
}

func (a listArgs) filter() (task.Filter, error) {
	f := task.Filter{Tags: a.Tags, IncludeArchived: a.IncludeArchived}
	var err error
	if a.Kind != "" {
		if f.Kind, err = task.ParseKind(a.Kind); err != nil {
			return task.Filter{}, err
		}
	}
	if a.Status != "" {
		if f.Status, err = task.ParseStatus(a.Status); err != nil {
			return task.Filter{}, err
		}
	}
	if a.Priority != "" {
		if f.Priority, err = task.ParsePriority(a.Priority); err != nil {
			return task.Filter{}, err
		}
	}
	return f, nil
}

func (s *Server) listTasks(ctx context.Context, data []byte) (string, error) {
	var args listArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	f, err := args.filter()
	if err != nil {
		return "", err
	}

	if args.Aggregate {
		linked, err := s.hasProjects()
		if err != nil {
			return "", err
		}
		if linked {
			res, err := s.engine().List(ctx, f)
			if err != nil {
				return "", err
			}
			return s.fmtr.FormatTaskList(render.ListFromAggregate(res)), nil
		}
		s.logger.Debug("no linked projects, listing current store")
	}

	st, err := s.currentStore()
	if err != nil {
		return "", err
	}
	tasks, err := st.List(f)
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatTaskList(render.ListFromTasks(tasks)), nil
}

func (s *Server) hasProjects() (bool, error) {
	projects, err := s.registry.Projects()
	if err != nil {
		return false, err
	}
	return len(projects) > 0, nil
}

type idArgs struct {
	ID idArg `json:"id"`
}

func (s *Server) getTask(_ context.Context, data []byte) (string, error) {
	var args idArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	target, st, err := s.target(args.ID)
	if err != nil {
		return "", err
	}
	t, err := st.Get(target.ID)
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatTaskDetail(render.NewTaskDetail(target.Display(), t)), nil
}

type completeArgs struct {
	IDs []idArg `json:"ids"`
}

// completeTask completes every id it can. It fails only when none succeed;
// otherwise failures are listed after the transitions.
func (s *Server) completeTask(_ context.Context, data []byte) (string, error) {
	var args completeArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}

	var (
		out  strings.Builder
		errs []error
	)
	for _, raw := range args.IDs {
		text, err := s.transition(raw, task.StatusCompleted)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", raw, err))
			continue
		}
		out.WriteString(text)
	}
	if out.Len() == 0 {
		return "", errors.Join(errs...)
	}
	for _, err := range errs {
		fmt.Fprintf(&out, "failed %s\n", err)
	}
	return out.String(), nil
}

type statusArgs struct {
	ID     idArg  `json:"id"`
	Status string `json:"status"`
}

func (s *Server) setTaskStatus(_ context.Context, data []byte) (string, error) {
	var args statusArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	status, err := task.ParseStatus(args.Status)
	if err != nil {
		return "", err
	}
	return s.transition(args.ID, status)
}

func (s *Server) transition(raw idArg, target task.Status) (string, error) {
	t, st, err := s.target(raw)
	if err != nil {
		return "", err
	}
	updated, res, err := st.SetStatus(t.ID, target)
	if err != nil {
		return "", err
	}
	data := &render.TransitionData{
		ID:     t.Display(),
		From:   string(res.OldStatus),
		To:     string(res.NewStatus),
		Commit: updated.CompletionCommit,
	}
	if res.Notice != nil {
		s.logger.Debug("transition notice", "id", data.ID, "notice", res.Notice)
		data.Notice = res.NoticeText()
	}
	return s.fmtr.FormatTransition(data), nil
}

type updateArgs struct {
	ID          idArg     `json:"id"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Due         *string   `json:"due"`
	ClearDue    bool      `json:"clear_due"`
	Tags        *[]string `json:"tags"`
}

func (a updateArgs) patch() (task.Patch, error) {
	p := task.Patch{Title: a.Title, Description: a.Description, ClearDue: a.ClearDue}
	if a.Priority != nil {
		prio, err := task.ParsePriority(*a.Priority)
		if err != nil {
			return task.Patch{}, err
		}
		p.Priority = &prio
	}
	if a.Due != nil {
		if a.ClearDue {
			return task.Patch{}, errors.New("due and clear_due cannot be combined")
		}
		d, err := task.ParseDate(*a.Due)
		if err != nil {
			return task.Patch{}, err
		}
		p.Due = &d
	}
	if a.Tags != nil {
		p.Tags, p.SetTags = *a.Tags, true
	}
	if p.Title == nil && p.Description == nil && p.Priority == nil && p.Due == nil && !p.ClearDue && !p.SetTags {
		return task.Patch{}, errors.New("nothing to update: pass at least one of title, description, priority, due, clear_due or tags")
	}
	return p, nil
}

func (s *Server) updateTask(_ context.Context, data []byte) (string, error) {
	var args updateArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	p, err := args.patch()
	if err != nil {
		return "", err
	}
	target, st, err := s.target(args.ID)
	if err != nil {
		return "", err
	}
	updated, err := st.Update(target.ID, p)
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatTaskDetail(render.NewTaskDetail(target.Display(), updated)), nil
}

func (s *Server) deleteTask(_ context.Context, data []byte) (string, error) {
	var args idArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	target, st, err := s.target(args.ID)
	if err != nil {
		return "", err
	}
	if err := st.Delete(target.ID); err != nil {
		return "", err
	}
	return s.fmtr.FormatMessage("Deleted #" + target.Display()), nil
}

type statsArgs struct {
	Aggregate bool `json:"aggregate"`
}

func (s *Server) getStats(ctx context.Context, data []byte) (string, error) {
	var args statsArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	f := task.Filter{IncludeArchived: true}
	if args.Aggregate {
		res, err := s.engine().Stats(ctx, f)
		if err != nil {
			return "", err
		}
		return s.fmtr.FormatStats(render.StatsFromAggregate(res)), nil
	}

	st, err := s.currentStore()
	if err != nil {
		return "", err
	}
	stats, err := st.Stats(f)
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatStats(&render.StatsData{Stats: stats}), nil
}

type pathArgs struct {
	Path string `json:"path"`
}

// path returns the argument made absolute against the working directory.
func (a pathArgs) path(workDir string) string {
	if filepath.IsAbs(a.Path) {
		return a.Path
	}
	return filepath.Join(workDir, a.Path)
}

func displayPath(path string) string {
	if c, err := store.Canonical(path); err == nil {
		return c
	}
	return path
}

func (s *Server) linkProject(_ context.Context, data []byte) (string, error) {
	var args pathArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	path := args.path(s.opts.WorkDir)
	added, err := s.registry.Link(path)
	if err != nil {
		return "", err
	}
	if !added {
		return s.fmtr.FormatMessage("Project already linked: " + displayPath(path)), nil
	}
	return s.fmtr.FormatMessage("Linked project: " + displayPath(path)), nil
}

func (s *Server) unlinkProject(_ context.Context, data []byte) (string, error) {
	var args pathArgs
	if err := decode(data, &args); err != nil {
		return "", err
	}
	path := args.path(s.opts.WorkDir)
	if err := s.registry.Unlink(path); err != nil {
		return "", err
	}
	return s.fmtr.FormatMessage("Unlinked project: " + displayPath(path)), nil
}

func (s *Server) listProjects(context.Context, []byte) (string, error) {
	projects, err := s.registry.ListProjects()
	if err != nil {
		return "", err
	}
	return s.fmtr.FormatProjects(render.ProjectRows(projects)), nil
}
