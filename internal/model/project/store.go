package project

import (
	"sort"
	"strings"
	"sync"
)

// Store exposes the project workspace to the assistant tools.
type Store interface {
	ProjectsByStatus(status Status) []Project
	ProjectsForMember(userID string) []Project
	FindProject(name string) (Project, bool)
	TasksAssignedTo(userID string) []Task
	TasksByDueDate(limit int) []Task
	DocumentsFor(projectID string) []Document
}

// MemoryStore implements Store over a Dataset.
type MemoryStore struct {
	mu   sync.RWMutex
	data Dataset
}

// NewMemoryStore returns a MemoryStore serving a copy of data.
func NewMemoryStore(data Dataset) *MemoryStore {
	return &MemoryStore{data: Dataset{
		Projects:    append([]Project(nil), data.Projects...),
		Members:     append([]Member(nil), data.Members...),
		Tasks:       append([]Task(nil), data.Tasks...),
		Assignments: append([]Assignment(nil), data.Assignments...),
		Documents:   append([]Document(nil), data.Documents...),
	}}
}

// ProjectsByStatus returns the projects in status, in seed order.
func (s *MemoryStore) ProjectsByStatus(status Status) []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.data.Projects {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// ProjectsForMember returns the projects userID belongs to.
func (s *MemoryStore) ProjectsForMember(userID string) []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool)
	for _, m := range s.data.Members {
		if m.UserID == userID {
			ids[m.ProjectID] = true
		}
	}
	var out []Project
	for _, p := range s.data.Projects {
		if ids[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// FindProject matches name case-insensitively against project names. An exact
// match wins over a partial one.
func (s *MemoryStore) FindProject(name string) (Project, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Project{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var partial *Project
	for i, p := range s.data.Projects {
		lower := strings.ToLower(p.Name)
		if lower == needle {
			return p, true
		}
		if partial == nil && strings.Contains(lower, needle) {
			partial = &s.data.Projects[i]
		}
	}
	if partial != nil {
		return *partial, true
	}
	return Project{}, false
}

// TasksAssignedTo returns the tasks userID is assigned to.
func (s *MemoryStore) TasksAssignedTo(userID string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]bool)
	for _, a := range s.data.Assignments {
		if a.UserID == userID {
			ids[a.TaskID] = true
		}
	}
	var out []Task
	for _, t := range s.data.Tasks {
		if ids[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// TasksByDueDate returns open tasks with a due date, nearest first. A
// non-positive limit returns all of them.
func (s *MemoryStore) TasksByDueDate(limit int) []Task {
	s.mu.RLock()
	var out []Task
	for _, t := range s.data.Tasks {
		if t.DueDate != nil && t.Status != TaskDone {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(*out[j].DueDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DocumentsFor returns the documents uploaded to projectID, newest first.
func (s *MemoryStore) DocumentsFor(projectID string) []Document {
	s.mu.RLock()
	var out []Document
	for _, d := range s.data.Documents {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}
