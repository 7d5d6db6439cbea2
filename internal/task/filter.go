package task

// Filter selects tasks for listing. Zero-valued fields match everything;
// archived tasks are excluded unless IncludeArchived is set.
type Filter struct {
	Kind            Kind
	Status          Status
	Priority        Priority
	Tags            []string
	IncludeArchived bool
}

// Matches reports whether t satisfies every predicate of the filter. All
// requested tags must be present on the task.
func (f Filter) Matches(t *Task) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	for _, tag := range f.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	// An explicit archived status filter implies archived records are wanted.
	if t.Status == StatusArchived && !f.IncludeArchived && f.Status != StatusArchived {
		return false
	}
	return true
}
