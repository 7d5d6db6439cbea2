package task

// Stats holds record counts for one store or an aggregate of stores.
type Stats struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Archived   int
	Overdue    int
	Tasks      int
	Todos      int
	Ideas      int
	// ByPriority is indexed in Priorities order: low, medium, high, critical.
	ByPriority [4]int
}

// Open returns the number of pending and in-progress records.
func (s Stats) Open() int {
	return s.Pending + s.InProgress
}

// Add accumulates another set of counts into s.
func (s *Stats) Add(o Stats) {
	s.Total += o.Total
	s.Pending += o.Pending
	s.InProgress += o.InProgress
	s.Completed += o.Completed
	s.Archived += o.Archived
	s.Overdue += o.Overdue
	s.Tasks += o.Tasks
	s.Todos += o.Todos
	s.Ideas += o.Ideas
	for i := range s.ByPriority {
		s.ByPriority[i] += o.ByPriority[i]
	}
}

// CountStatus increments the bucket for status by n.
func (s *Stats) CountStatus(status Status, n int) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusInProgress:
		s.InProgress += n
	case StatusCompleted:
		s.Completed += n
	case StatusArchived:
		s.Archived += n
	}
}

// CountKind increments the bucket for kind by n.
func (s *Stats) CountKind(kind Kind, n int) {
	switch kind {
	case KindTask:
		s.Tasks += n
	case KindTodo:
		s.Todos += n
	case KindIdea:
		s.Ideas += n
	}
}

// CountPriority increments the bucket for priority by n.
func (s *Stats) CountPriority(p Priority, n int) {
	for i, known := range Priorities {
		if known == p {
			s.ByPriority[i] += n
			return
		}
	}
}

// Tally counts the given tasks. Overdue is judged against today.
func Tally(tasks []Task, today Date) Stats {
	var s Stats
	for i := range tasks {
		t := &tasks[i]
		s.Total++
		s.CountStatus(t.Status, 1)
		s.CountKind(t.Kind, 1)
		s.CountPriority(t.Priority, 1)
		if t.IsOverdue(today) {
			s.Overdue++
		}
	}
	return s
}
