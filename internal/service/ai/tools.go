package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/zhouzirui/z-tavern/client/internal/model/account"
	"github.com/zhouzirui/z-tavern/client/internal/model/project"
)

const (
	ProjectQueryTool  = "project_query"
	TaskQueryTool     = "task_query"
	UserQueryTool     = "user_query"
	DocumentQueryTool = "document_query"

	defaultDeadlineLimit = 5
	dateLayout           = "2006-01-02"
)

// People is the account directory the user tool searches.
type People interface {
	List() []account.User
	FindByID(id string) (account.User, bool)
}

type userKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func userIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// ProjectQuery is the project_query argument.
type ProjectQuery struct {
	Scope string `json:"scope" jsonschema:"required,enum=active,enum=mine,description=active lists every active project; mine lists the projects the current user belongs to"`
}

// TaskQuery is the task_query argument.
type TaskQuery struct {
	Scope string `json:"scope" jsonschema:"required,enum=mine,enum=deadlines,description=mine lists the tasks assigned to the current user; deadlines lists open tasks with the nearest due dates"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=maximum number of tasks for the deadlines scope; defaults to 5"`
}

// UserQuery is the user_query argument.
type UserQuery struct {
	Name string `json:"name" jsonschema:"required,description=full name or username of the team member"`
}

// DocumentQuery is the document_query argument.
type DocumentQuery struct {
	Project string `json:"project" jsonschema:"required,description=name of the project whose documents to list"`
}

// Workspace answers questions about projects, tasks, team members and
// documents on behalf of the user a reply is generated for.
type Workspace struct {
	projects project.Store
	people   People
}

// NewWorkspace creates a Workspace over the given stores.
func NewWorkspace(projects project.Store, people People) *Workspace {
	return &Workspace{projects: projects, people: people}
}

// Tools exposes the workspace queries as eino tools.
func (w *Workspace) Tools() ([]tool.BaseTool, error) {
	projectTool, err := utils.InferTool(ProjectQueryTool,
		"Answer questions about projects, such as which projects are active or which projects I am on.",
		w.QueryProjects)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ProjectQueryTool, err)
	}
	taskTool, err := utils.InferTool(TaskQueryTool,
		"Answer questions about tasks, such as what is assigned to me or which deadlines are coming up.",
		w.QueryTasks)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", TaskQueryTool, err)
	}
	userTool, err := utils.InferTool(UserQueryTool,
		"Answer questions about team members, such as who someone is or what they are working on.",
		w.QueryUsers)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", UserQueryTool, err)
	}
	documentTool, err := utils.InferTool(DocumentQueryTool,
		"List the documents uploaded to a project.",
		w.QueryDocuments)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", DocumentQueryTool, err)
	}
	return []tool.BaseTool{projectTool, taskTool, userTool, documentTool}, nil
}

// QueryProjects lists active projects or the current user's projects.
func (w *Workspace) QueryProjects(ctx context.Context, in ProjectQuery) (string, error) {
	switch strings.ToLower(strings.TrimSpace(in.Scope)) {
	case "active":
		projects := w.projects.ProjectsByStatus(project.StatusActive)
		if len(projects) == 0 {
			return "There are no active projects.", nil
		}
		lines := make([]string, 0, len(projects))
		for _, p := range projects {
			if p.EndDate == nil {
				lines = append(lines, p.Name)
				continue
			}
			lines = append(lines, fmt.Sprintf("%s (Due: %s)", p.Name, p.EndDate.Format(dateLayout)))
		}
		return strings.Join(lines, "\n"), nil
	case "mine":
		userID, ok := userIDFrom(ctx)
		if !ok {
			return "I don't know who is asking.", nil
		}
		projects := w.projects.ProjectsForMember(userID)
		if len(projects) == 0 {
			return "You are not a member of any project.", nil
		}
		lines := make([]string, 0, len(projects))
		for _, p := range projects {
			lines = append(lines, p.Name)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "I couldn't find information about projects matching your query.", nil
	}
}

// QueryTasks lists the current user's tasks or the nearest deadlines.
func (w *Workspace) QueryTasks(ctx context.Context, in TaskQuery) (string, error) {
	switch strings.ToLower(strings.TrimSpace(in.Scope)) {
	case "mine":
		userID, ok := userIDFrom(ctx)
		if !ok {
			return "I don't know who is asking.", nil
		}
		tasks := w.projects.TasksAssignedTo(userID)
		if len(tasks) == 0 {
			return "You have no assigned tasks.", nil
		}
		lines := make([]string, 0, len(tasks))
		for _, t := range tasks {
			lines = append(lines, fmt.Sprintf("%s (%s)", t.Title, t.Status))
		}
		return strings.Join(lines, "\n"), nil
	case "deadlines":
		limit := in.Limit
		if limit <= 0 {
			limit = defaultDeadlineLimit
		}
		tasks := w.projects.TasksByDueDate(limit)
		if len(tasks) == 0 {
			return "No open task has a due date.", nil
		}
		lines := make([]string, 0, len(tasks))
		for _, t := range tasks {
			lines = append(lines, fmt.Sprintf("%s - Due: %s", t.Title, t.DueDate.Format(dateLayout)))
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "I couldn't find task information matching your query.", nil
	}
}

// QueryUsers reports what the named team member is working on.
func (w *Workspace) QueryUsers(_ context.Context, in UserQuery) (string, error) {
	name := strings.TrimSpace(in.Name)
	user, ok := w.findPerson(name)
	if !ok {
		return fmt.Sprintf("I couldn't find a user named %s", name), nil
	}

	tasks := w.projects.TasksAssignedTo(user.ID)
	if len(tasks) == 0 {
		return fmt.Sprintf("%s has no assigned tasks.", user.FullName), nil
	}
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, user.FullName+" is working on:")
	for _, t := range tasks {
		lines = append(lines, t.Title)
	}
	return strings.Join(lines, "\n"), nil
}

// QueryDocuments lists the documents uploaded to the named project.
func (w *Workspace) QueryDocuments(_ context.Context, in DocumentQuery) (string, error) {
	p, ok := w.projects.FindProject(in.Project)
	if !ok {
		return fmt.Sprintf("I couldn't find a project named %s", strings.TrimSpace(in.Project)), nil
	}

	docs := w.projects.DocumentsFor(p.ID)
	if len(docs) == 0 {
		return fmt.Sprintf("%s has no documents.", p.Name), nil
	}
	lines := make([]string, 0, len(docs)+1)
	lines = append(lines, "Documents for "+p.Name+":")
	for _, d := range docs {
		uploader := d.UploaderID
		if u, ok := w.people.FindByID(d.UploaderID); ok {
			uploader = u.FullName
		}
		lines = append(lines, fmt.Sprintf("%s (%s) uploaded by %s on %s", d.Name, d.FilePath, uploader, d.UploadedAt.Format(dateLayout)))
	}
	return strings.Join(lines, "\n"), nil
}

func (w *Workspace) findPerson(name string) (account.User, bool) {
	needle := strings.ToLower(name)
	if needle == "" {
		return account.User{}, false
	}
	for _, u := range w.people.List() {
		if strings.ToLower(u.Username) == needle || strings.Contains(strings.ToLower(u.FullName), needle) {
			return u, true
		}
	}
	return account.User{}, false
}
