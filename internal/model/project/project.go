package project

import "time"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Project is a unit of work the team tracks.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Status      Status     `json:"status"`
}

// Member links an account to a project.
type Member struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// Task is a piece of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Assignment links an account to a task.
type Assignment struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}

// Document is a file uploaded to a project.
type Document struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	FilePath   string    `json:"file_path"`
	UploaderID string    `json:"uploader_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Dataset is everything a MemoryStore serves.
type Dataset struct {
	Projects    []Project
	Members     []Member
	Tasks       []Task
	Assignments []Assignment
	Documents   []Document
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(year int, month time.Month, d int) *time.Time {
	t := day(year, month, d)
	return &t
}

// Seed provides the development workspace served by the reference backend.
// User ids match account.Seed.
func Seed() Dataset {
	return Dataset{
		Projects: []Project{
			{ID: "p1", Name: "Cellar Inventory", Description: "Track casks and bottles in the cellar.", StartDate: day(2026, 1, 5), EndDate: dayPtr(2026, 12, 18), Status: StatusActive},
			{ID: "p2", Name: "Spring Menu", Description: "Plan the seasonal menu.", StartDate: day(2026, 2, 1), EndDate: dayPtr(2026, 11, 20), Status: StatusActive},
			{ID: "p3", Name: "Roof Repair", Description: "Fix the leaking roof over the hearth.", StartDate: day(2025, 9, 1), EndDate: dayPtr(2025, 10, 30), Status: StatusCompleted},
			{ID: "p4", Name: "Bard Nights", Description: "Weekly music evenings.", StartDate: day(2026, 3, 1), Status: StatusPaused},
		},
		Members: []Member{
			{ProjectID: "p1", UserID: "1", Role: "owner"},
			{ProjectID: "p2", UserID: "1", Role: "contributor"},
			{ProjectID: "p2", UserID: "2", Role: "owner"},
			{ProjectID: "p3", UserID: "2", Role: "owner"},
			{ProjectID: "p4", UserID: "3", Role: "contributor"},
		},
		Tasks: []Task{
			{ID: "t1", ProjectID: "p1", Title: "Count the ale casks", Status: TaskInProgress, Priority: "high", DueDate: dayPtr(2026, 11, 2)},
			{ID: "t2", ProjectID: "p1", Title: "Label the wine racks", Status: TaskTodo, Priority: "medium", DueDate: dayPtr(2026, 11, 15)},
			{ID: "t3", ProjectID: "p2", Title: "Taste test the stew", Status: TaskTodo, Priority: "high", DueDate: dayPtr(2026, 10, 28)},
			{ID: "t4", ProjectID: "p2", Title: "Print new menus", Status: TaskTodo, Priority: "low", DueDate: dayPtr(2026, 11, 10)},
			{ID: "t5", ProjectID: "p3", Title: "Replace roof tiles", Status: TaskDone, Priority: "high", DueDate: dayPtr(2025, 10, 15)},
			{ID: "t6", ProjectID: "p2", Title: "Order spices", Status: TaskInProgress, Priority: "medium", DueDate: dayPtr(2026, 10, 25)},
			{ID: "t7", ProjectID: "p4", Title: "Book the first bard", Status: TaskTodo, Priority: "low"},
			{ID: "t8", ProjectID: "p1", Title: "Sweep the cellar", Status: TaskTodo, Priority: "low", DueDate: dayPtr(2026, 12, 1)},
		},
		Assignments: []Assignment{
			{TaskID: "t1", UserID: "1"},
			{TaskID: "t2", UserID: "1"},
			{TaskID: "t3", UserID: "2"},
			{TaskID: "t4", UserID: "1"},
			{TaskID: "t5", UserID: "2"},
			{TaskID: "t6", UserID: "2"},
			{TaskID: "t7", UserID: "3"},
		},
		Documents: []Document{
			{ID: "d1", ProjectID: "p1", Name: "Cask ledger", FilePath: "docs/cellar/cask-ledger.xlsx", UploaderID: "1", UploadedAt: day(2026, 1, 10)},
			{ID: "d2", ProjectID: "p2", Name: "Menu draft", FilePath: "docs/menu/draft.pdf", UploaderID: "2", UploadedAt: day(2026, 2, 14)},
			{ID: "d3", ProjectID: "p2", Name: "Supplier list", FilePath: "docs/menu/suppliers.csv", UploaderID: "1", UploadedAt: day(2026, 3, 2)},
		},
	}
}
