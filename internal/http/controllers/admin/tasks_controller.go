package admin

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/civicauth/internal/audit"
	httperrors "github.com/dropDatabas3/civicauth/internal/http/errors"
	"github.com/dropDatabas3/civicauth/internal/http/helpers"
	"github.com/dropDatabas3/civicauth/internal/observability/logger"
	"github.com/dropDatabas3/civicauth/internal/rotation"
	"github.com/go-chi/chi/v5"
)

// TasksController maneja /admin/tasks.
type TasksController struct {
	tasks TaskRunner
}

func NewTasksController(tasks TaskRunner) *TasksController {
	return &TasksController{tasks: tasks}
}

// List handles GET /admin/tasks.
func (c *TasksController) List(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, c.tasks.Status())
}

// Run handles POST /admin/tasks/{name}/run. Corre el trigger sincrónicamente.
func (c *TasksController) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := c.tasks.Trigger(r.Context(), name)
	switch {
	case errors.Is(err, rotation.ErrTaskNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("unknown task "+name))
		return
	case errors.Is(err, rotation.ErrTaskRunning):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("task "+name+" is already running"))
		return
	}

	audit.Log(r.Context(), audit.EventTaskTriggered, logger.Task(name), logger.Err(err))

	for _, st := range c.tasks.Status() {
		if st.Name == name {
			// un trigger que falla igual responde 200: el error queda en last_error
			helpers.WriteJSON(w, http.StatusOK, st)
			return
		}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"name": name})
}
