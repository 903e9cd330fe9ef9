package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(projects []Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Name)
	}
	return out
}

func titles(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestProjectsByStatus(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, []string{"Cellar Inventory", "Spring Menu"}, names(store.ProjectsByStatus(StatusActive)))
	assert.Equal(t, []string{"Roof Repair"}, names(store.ProjectsByStatus(StatusCompleted)))
	assert.Empty(t, store.ProjectsByStatus("archived"))
}

func TestProjectsForMember(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, []string{"Cellar Inventory", "Spring Menu"}, names(store.ProjectsForMember("1")))
	assert.Equal(t, []string{"Bard Nights"}, names(store.ProjectsForMember("3")))
	assert.Empty(t, store.ProjectsForMember("99"))
}

func TestFindProject(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := store.FindProject("menu")
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	p, ok = store.FindProject("  ROOF REPAIR ")
	require.True(t, ok)
	assert.Equal(t, "p3", p.ID)

	_, ok = store.FindProject("")
	assert.False(t, ok)
	_, ok = store.FindProject("dungeon")
	assert.False(t, ok)
}

func TestTasksAssignedTo(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, []string{"Count the ale casks", "Label the wine racks", "Print new menus"}, titles(store.TasksAssignedTo("1")))
	assert.Empty(t, store.TasksAssignedTo("99"))
}

func TestTasksByDueDate(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, []string{"Order spices", "Taste test the stew", "Count the ale casks"}, titles(store.TasksByDueDate(3)))

	all := store.TasksByDueDate(0)
	assert.Len(t, all, 6)
	for _, task := range all {
		assert.NotEqual(t, TaskDone, task.Status)
		assert.NotNil(t, task.DueDate)
	}
}

func TestDocumentsFor(t *testing.T) {
	store := NewMemoryStore(Seed())

	docs := store.DocumentsFor("p2")
	require.Len(t, docs, 2)
	assert.Equal(t, "Supplier list", docs[0].Name)
	assert.Equal(t, "Menu draft", docs[1].Name)
	assert.Empty(t, store.DocumentsFor("p4"))
}

func TestMemoryStoreCopiesDataset(t *testing.T) {
	data := Seed()
	store := NewMemoryStore(data)
	data.Projects[0].Name = "changed"

	assert.Equal(t, "Cellar Inventory", store.ProjectsByStatus(StatusActive)[0].Name)
}
