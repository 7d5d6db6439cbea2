// Package frontmatter encodes task records as Markdown files with a YAML
// metadata block and decodes them back.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/leeovery/gittask/internal/task"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// header is the encoded form of the metadata block. Field order is the key
// order written to disk.
type header struct {
	ID               uint64    `yaml:"id"`
	Title            string    `yaml:"title"`
	Status           string    `yaml:"status"`
	Priority         string    `yaml:"priority"`
	Kind             string    `yaml:"kind"`
	Tags             []string  `yaml:"tags"`
	Due              *dueDate  `yaml:"due,omitempty"`
	Created          time.Time `yaml:"created"`
	Updated          time.Time `yaml:"updated"`
	CompletionCommit string    `yaml:"completionCommit,omitempty"`
}

// dueDate emits a bare calendar date rather than a quoted string.
type dueDate task.Date

func (d dueDate) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!timestamp",
		Value: task.Date(d).String(),
	}, nil
}

// rawHeader is the decoded form. Optional slots are pointers so absence can
// be told apart from zero values.
type rawHeader struct {
	ID               *uint64  `yaml:"id"`
	Title            *string  `yaml:"title"`
	Status           *string  `yaml:"status"`
	Priority         *string  `yaml:"priority"`
	Kind             *string  `yaml:"kind"`
	Tags             []string `yaml:"tags"`
	Due              *string  `yaml:"due"`
	Created          *string  `yaml:"created"`
	Updated          *string  `yaml:"updated"`
	CompletionCommit *string  `yaml:"completionCommit"`
}

// Marshal renders t as a Markdown record: the metadata block between two
// "---" lines, then a blank line and the description when it is non-empty.
func Marshal(t task.Task) ([]byte, error) {
	h := header{
		ID:               t.ID,
		Title:            t.Title,
		Status:           string(t.Status),
		Priority:         string(t.Priority),
		Kind:             string(t.Kind),
		Tags:             t.Tags,
		Created:          t.Created,
		Updated:          t.Updated,
		CompletionCommit: t.CompletionCommit,
	}
	if h.Tags == nil {
		h.Tags = []string{}
	}
	if t.Due != nil {
		d := dueDate(*t.Due)
		h.Due = &d
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("encoding frontmatter for task %d: %w", t.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding frontmatter for task %d: %w", t.ID, err)
	}
	buf.WriteString(delimiter + "\n")

	if desc := task.NormalizeDescription(t.Description); desc != "" {
		buf.WriteString("\n")
		buf.WriteString(desc)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a Markdown record. Keys may appear in any order; absent
// status, priority and kind take their defaults, absent tags, due and
// completionCommit are left empty. Unknown enum values, a missing or zero id,
// and a missing title are rejected with *task.ValidationError.
func Unmarshal(data []byte) (task.Task, error) {
	meta, body, err := split(string(data))
	if err != nil {
		return task.Task{}, err
	}

	var raw rawHeader
	if err := yaml.Unmarshal([]byte(meta), &raw); err != nil {
		return task.Task{}, &task.ValidationError{Field: "frontmatter", Reason: err.Error()}
	}

	t, err := raw.toTask()
	if err != nil {
		return task.Task{}, err
	}
	t.Description = task.NormalizeDescription(body)

	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (r rawHeader) toTask() (task.Task, error) {
	var t task.Task

	if r.ID == nil || *r.ID == 0 {
		return task.Task{}, &task.ValidationError{Field: "id", Reason: "is required"}
	}
	t.ID = *r.ID

	if r.Title == nil {
		return task.Task{}, &task.ValidationError{Field: "title", Reason: "is required"}
	}
	t.Title = task.TrimTitle(*r.Title)

	t.Status = task.StatusPending
	if r.Status != nil {
		s, err := task.ParseStatus(*r.Status)
		if err != nil {
			return task.Task{}, err
		}
		t.Status = s
	}

	t.Priority = task.PriorityMedium
	if r.Priority != nil {
		p, err := task.ParsePriority(*r.Priority)
		if err != nil {
			return task.Task{}, err
		}
		t.Priority = p
	}

	t.Kind = task.KindTask
	if r.Kind != nil {
		k, err := task.ParseKind(*r.Kind)
		if err != nil {
			return task.Task{}, err
		}
		t.Kind = k
	}

	t.Tags = task.NormalizeTags(r.Tags)
	if t.Tags == nil {
		t.Tags = []string{}
	}

	if r.Due != nil && strings.TrimSpace(*r.Due) != "" {
		d, err := task.ParseDate(strings.TrimSpace(*r.Due))
		if err != nil {
			return task.Task{}, err
		}
		t.Due = &d
	}

	if r.Created == nil {
		return task.Task{}, &task.ValidationError{Field: "created", Reason: "is required"}
	}
	created, err := parseTimestamp("created", *r.Created)
	if err != nil {
		return task.Task{}, err
	}
	t.Created = created
	t.Updated = created
	if r.Updated != nil {
		updated, err := parseTimestamp("updated", *r.Updated)
		if err != nil {
			return task.Task{}, err
		}
		t.Updated = updated
	}

	if r.CompletionCommit != nil {
		t.CompletionCommit = strings.TrimSpace(*r.CompletionCommit)
	}
	return t, nil
}

func parseTimestamp(field, s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &task.ValidationError{Field: field, Reason: fmt.Sprintf("invalid timestamp %q", s)}
	}
	return ts, nil
}

// split separates the metadata block from the body. The content must open
// with a "---" line and the block ends at the next "---" line.
func split(content string) (meta, body string, err error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimLeft(content, "\n")

	if !strings.HasPrefix(content, delimiter+"\n") {
		return "", "", &task.ValidationError{Field: "frontmatter", Reason: "missing opening ---"}
	}
	rest := content[len(delimiter)+1:]

	// The block may be empty, in which case the closing line follows directly.
	if strings.HasPrefix(rest, delimiter+"\n") || rest == delimiter {
		return "", strings.TrimPrefix(rest, delimiter), nil
	}

	end := strings.Index(rest, "\n"+delimiter+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+delimiter) {
			return rest[:len(rest)-len(delimiter)-1], "", nil
		}
		return "", "", &task.ValidationError{Field: "frontmatter", Reason: "missing closing ---"}
	}
	return rest[:end], rest[end+len(delimiter)+2:], nil
}
