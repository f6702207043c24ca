package handlers

import (
	"fmt"
	"net/http"

	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/models"
	"github.com/diewo77/agency-portal/internal/services"
	"github.com/diewo77/agency-portal/validation"
)

// ProjectHandler is the admin side of projects, milestones and tasks.
type ProjectHandler struct {
	projects  *services.ProjectService
	dashboard *services.DashboardService
}

func NewProjectHandler(projects *services.ProjectService, dashboard *services.DashboardService) *ProjectHandler {
	return &ProjectHandler{projects: projects, dashboard: dashboard}
}

func projectURL(id uint) string { return fmt.Sprintf("/admin/projects/%d", id) }

// formOptions are the choices every project form offers.
func (h *ProjectHandler) formOptions(r *http.Request, data map[string]any) (map[string]any, error) {
	clients, err := h.dashboard.ListClients(r.Context(), "")
	if err != nil {
		return nil, err
	}
	data["Clients"] = clients
	data["Types"] = models.ProjectTypes
	data["Statuses"] = models.ProjectStatuses
	data["TaskStatuses"] = models.TaskStatuses
	data["Priorities"] = models.TaskPriorities
	return data, nil
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListProjects(r.Context(), 0)
	if err != nil {
		fail(w, r, err, "failed_to_list_projects")
		return
	}
	status, ok := models.ParseProjectStatus(r.URL.Query().Get("status"))
	if !ok {
		status = ""
	}
	if status != "" {
		filtered := projects[:0]
		for _, p := range projects {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		projects = filtered
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": projects, "total": len(projects)})
		return
	}
	data, err := h.formOptions(r, map[string]any{"Projects": projects, "Status": status})
	if err != nil {
		fail(w, r, err, "failed_to_list_clients")
		return
	}
	render(w, r, "admin/projects.html", data)
}

func (h *ProjectHandler) New(w http.ResponseWriter, r *http.Request) {
	h.showForm(w, r, http.StatusOK, services.ProjectInput{
		Type:   models.ProjectTypeOnceOff,
		Status: models.ProjectPending,
	}, nil)
}

func (h *ProjectHandler) showForm(w http.ResponseWriter, r *http.Request, status int, in services.ProjectInput, v validation.Violations) {
	data, err := h.formOptions(r, map[string]any{"Form": in, "Errors": v})
	if err != nil {
		fail(w, r, err, "failed_to_list_clients")
		return
	}
	renderStatus(w, r, status, "admin/project_form.html", data)
}

func projectFromForm(r *http.Request) services.ProjectInput {
	in := services.ProjectInput{
		ProjectName: r.FormValue("project_name"),
		Description: r.FormValue("description"),
	}
	// Unknown values are kept so validation can name the field.
	in.Type, _ = models.ParseProjectType(r.FormValue("type"))
	in.Status, _ = models.ParseProjectStatus(r.FormValue("status"))
	if id := formUint(r, "client_id"); id != 0 {
		in.ClientID = &id
	}
	return in
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProjectInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = projectFromForm(r)
	}
	p, err := h.projects.CreateProject(r.Context(), in)
	if err != nil {
		if v, invalid := services.Violations(err); invalid && !jsonClient(r) {
			h.showForm(w, r, http.StatusBadRequest, in, v)
			return
		}
		fail(w, r, err, "failed_to_create_project")
		return
	}
	done(w, r, http.StatusCreated, p, projectURL(p.ID))
}

func (h *ProjectHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	h.show(w, r, http.StatusOK, id, nil)
}

// show renders the project page, optionally with errors from one of its forms.
func (h *ProjectHandler) show(w http.ResponseWriter, r *http.Request, status int, id uint, extra map[string]any) {
	p, err := h.projects.GetProject(r.Context(), id)
	if err != nil {
		fail(w, r, err, "failed_to_load_project")
		return
	}
	if jsonClient(r) {
		httpx.JSON(w, http.StatusOK, p)
		return
	}
	data := map[string]any{"Project": p, "ErrorScope": "", "Errors": validation.Violations(nil)}
	for k, v := range extra {
		data[k] = v
	}
	data, err = h.formOptions(r, data)
	if err != nil {
		fail(w, r, err, "failed_to_list_clients")
		return
	}
	renderStatus(w, r, status, "admin/project_detail.html", data)
}

// formError re-renders the project page for HTML callers; scope says which
// form on the page the errors belong to.
func (h *ProjectHandler) formError(w http.ResponseWriter, r *http.Request, projectID uint, scope string, err error, code string) {
	if v, invalid := services.Violations(err); invalid && !jsonClient(r) {
		h.show(w, r, http.StatusBadRequest, projectID, map[string]any{"Errors": v, "ErrorScope": scope})
		return
	}
	fail(w, r, err, code)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in services.ProjectInput
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = projectFromForm(r)
	}
	p, err := h.projects.UpdateProject(r.Context(), id, in)
	if err != nil {
		h.formError(w, r, id, "project", err, "failed_to_update_project")
		return
	}
	done(w, r, http.StatusOK, p, projectURL(id))
}

func (h *ProjectHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	var in struct {
		Status models.ProjectStatus `json:"status"`
	}
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in.Status, _ = models.ParseProjectStatus(r.FormValue("status"))
	}
	if err := h.projects.SetStatus(r.Context(), id, in.Status); err != nil {
		h.formError(w, r, id, "project", err, "failed_to_update_project")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": id, "status": in.Status}, projectURL(id))
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	if err := h.projects.DeleteProject(r.Context(), id); err != nil {
		fail(w, r, err, "failed_to_delete_project")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": id}, "/admin/projects")
}

// milestoneInput reads a milestone from JSON or the form. ok is false once
// the request has been answered.
func milestoneInput(w http.ResponseWriter, r *http.Request) (services.MilestoneInput, validation.Violations, bool) {
	var in services.MilestoneInput
	isJSON, ok := decode(w, r, &in)
	if !ok || isJSON {
		return in, nil, ok
	}
	v := validation.Violations{}
	in = services.MilestoneInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		DueDate:     formDate(r, "due_date", v),
	}
	return in, v, true
}

func (h *ProjectHandler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badID(w, r)
		return
	}
	in, v, ok := milestoneInput(w, r)
	if !ok {
		return
	}
	if !v.Empty() {
		h.formError(w, r, id, "milestone", &services.ValidationError{Violations: v}, "failed_to_create_milestone")
		return
	}
	m, err := h.projects.AddMilestone(r.Context(), id, in)
	if err != nil {
		h.formError(w, r, id, "milestone", err, "failed_to_create_milestone")
		return
	}
	done(w, r, http.StatusCreated, m, projectURL(id))
}

func (h *ProjectHandler) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	mid, ok2 := idParam(r, "milestoneID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	in, v, ok := milestoneInput(w, r)
	if !ok {
		return
	}
	if !v.Empty() {
		h.formError(w, r, id, fmt.Sprintf("milestone-%d", mid), &services.ValidationError{Violations: v}, "failed_to_update_milestone")
		return
	}
	if err := h.projects.UpdateMilestone(r.Context(), id, mid, in); err != nil {
		h.formError(w, r, id, fmt.Sprintf("milestone-%d", mid), err, "failed_to_update_milestone")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": mid}, projectURL(id))
}

func (h *ProjectHandler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	mid, ok2 := idParam(r, "milestoneID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	if err := h.projects.DeleteMilestone(r.Context(), id, mid); err != nil {
		fail(w, r, err, "failed_to_delete_milestone")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": mid}, projectURL(id))
}

func taskInput(w http.ResponseWriter, r *http.Request) (services.TaskInput, bool) {
	var in services.TaskInput
	isJSON, ok := decode(w, r, &in)
	if !ok || isJSON {
		return in, ok
	}
	in = services.TaskInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	in.Status, _ = models.ParseTaskStatus(r.FormValue("status"))
	in.Priority, _ = models.ParseTaskPriority(r.FormValue("priority"))
	return in, true
}

func (h *ProjectHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	mid, ok2 := idParam(r, "milestoneID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	in, ok := taskInput(w, r)
	if !ok {
		return
	}
	t, err := h.projects.AddTask(r.Context(), id, mid, in)
	if err != nil {
		h.formError(w, r, id, fmt.Sprintf("task-new-%d", mid), err, "failed_to_create_task")
		return
	}
	done(w, r, http.StatusCreated, t, projectURL(id))
}

func (h *ProjectHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	tid, ok2 := idParam(r, "taskID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	in, ok := taskInput(w, r)
	if !ok {
		return
	}
	if err := h.projects.UpdateTask(r.Context(), id, tid, in); err != nil {
		h.formError(w, r, id, fmt.Sprintf("task-%d", tid), err, "failed_to_update_task")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": tid}, projectURL(id))
}

func (h *ProjectHandler) SetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	tid, ok2 := idParam(r, "taskID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	var in struct {
		Status models.TaskStatus `json:"status"`
	}
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in.Status, _ = models.ParseTaskStatus(r.FormValue("status"))
	}
	if err := h.projects.SetTaskStatus(r.Context(), id, tid, in.Status); err != nil {
		h.formError(w, r, id, fmt.Sprintf("task-%d", tid), err, "failed_to_update_task")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"id": tid, "status": in.Status}, projectURL(id))
}

func (h *ProjectHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok1 := idParam(r, "id")
	tid, ok2 := idParam(r, "taskID")
	if !ok1 || !ok2 {
		badID(w, r)
		return
	}
	if err := h.projects.DeleteTask(r.Context(), id, tid); err != nil {
		fail(w, r, err, "failed_to_delete_task")
		return
	}
	done(w, r, http.StatusOK, map[string]any{"deleted": tid}, projectURL(id))
}
