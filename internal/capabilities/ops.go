package capabilities

import (
	"net/http"
	"net/url"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/graph"
)

// MailOps exposes message operations as cap.mail.*.
type MailOps struct{ c *caller }

func (o *MailOps) List(opts map[string]any) (any, error) {
	return o.c.get("/me/messages", opts)
}

func (o *MailOps) Get(id string) (any, error) {
	return o.c.get("/me/messages/"+url.PathEscape(id), nil)
}

// Send posts a message via /me/sendMail. message follows the Graph message
// resource shape (subject, body, toRecipients, ...).
func (o *MailOps) Send(message map[string]any) (any, error) {
	body := map[string]any{"message": message, "saveToSentItems": true}
	return o.c.call("/me/sendMail", graph.RequestOptions{Method: http.MethodPost, Body: body})
}

func (o *MailOps) Delete(id string) (any, error) {
	return o.c.call("/me/messages/"+url.PathEscape(id), graph.RequestOptions{Method: http.MethodDelete})
}

// CalendarOps exposes scheduled-event operations as cap.calendar.*.
type CalendarOps struct{ c *caller }

func (o *CalendarOps) List(opts map[string]any) (any, error) {
	return o.c.get("/me/events", opts)
}

func (o *CalendarOps) Get(id string) (any, error) {
	return o.c.get("/me/events/"+url.PathEscape(id), nil)
}

func (o *CalendarOps) Create(event map[string]any) (any, error) {
	return o.c.call("/me/events", graph.RequestOptions{Method: http.MethodPost, Body: event})
}

func (o *CalendarOps) Update(id string, patch map[string]any) (any, error) {
	return o.c.call("/me/events/"+url.PathEscape(id), graph.RequestOptions{Method: http.MethodPatch, Body: patch})
}

func (o *CalendarOps) Delete(id string) (any, error) {
	return o.c.call("/me/events/"+url.PathEscape(id), graph.RequestOptions{Method: http.MethodDelete})
}

// TeamsOps exposes team/channel browsing as cap.teams.*.
type TeamsOps struct{ c *caller }

func (o *TeamsOps) List(opts map[string]any) (any, error) {
	return o.c.get("/me/joinedTeams", opts)
}

func (o *TeamsOps) ListChannels(teamID string) (any, error) {
	return o.c.get("/teams/"+url.PathEscape(teamID)+"/channels", nil)
}

// FilesOps exposes drive operations as cap.files.*.
type FilesOps struct{ c *caller }

func (o *FilesOps) List(opts map[string]any) (any, error) {
	return o.c.get("/me/drive/root/children", opts)
}

func (o *FilesOps) Get(id string) (any, error) {
	return o.c.get("/me/drive/items/"+url.PathEscape(id), nil)
}

// Upload writes content to the given drive-relative path.
func (o *FilesOps) Upload(path string, content string) (any, error) {
	return o.c.call("/me/drive/root:/"+path+":/content", graph.RequestOptions{
		Method:      http.MethodPut,
		RawBody:     []byte(content),
		ContentType: "text/plain",
	})
}

// SitesOps exposes SharePoint site and list operations as cap.sites.*.
type SitesOps struct{ c *caller }

func (o *SitesOps) Search(query string) (any, error) {
	q := url.Values{"search": {query}}
	return o.c.call("/sites", graph.RequestOptions{Query: q})
}

func (o *SitesOps) Get(siteID string) (any, error) {
	return o.c.get("/sites/"+url.PathEscape(siteID), nil)
}

func (o *SitesOps) GetLists(siteID string) (any, error) {
	return o.c.get("/sites/"+url.PathEscape(siteID)+"/lists", nil)
}

func (o *SitesOps) GetListItems(siteID, listID string) (any, error) {
	q := url.Values{"$expand": {"fields"}}
	return o.c.call("/sites/"+url.PathEscape(siteID)+"/lists/"+url.PathEscape(listID)+"/items",
		graph.RequestOptions{Query: q})
}

// PlannerOps exposes planner task operations as cap.planner.*.
type PlannerOps struct{ c *caller }

func (o *PlannerOps) ListTasks(opts map[string]any) (any, error) {
	return o.c.get("/me/planner/tasks", opts)
}

func (o *PlannerOps) GetTask(id string) (any, error) {
	return o.c.get("/planner/tasks/"+url.PathEscape(id), nil)
}

func (o *PlannerOps) CreateTask(task map[string]any) (any, error) {
	return o.c.call("/planner/tasks", graph.RequestOptions{Method: http.MethodPost, Body: task})
}

// UpdateTask patches a task. etag is the planner concurrency token; when
// empty the wildcard match is sent.
func (o *PlannerOps) UpdateTask(id string, patch map[string]any, etag string) (any, error) {
	match := etag
	if match == "" {
		match = "*"
	}
	return o.c.call("/planner/tasks/"+url.PathEscape(id), graph.RequestOptions{
		Method:  http.MethodPatch,
		Body:    patch,
		Headers: map[string]string{"If-Match": match},
	})
}

// TodoOps exposes personal task-list operations as cap.todo.*.
type TodoOps struct{ c *caller }

func (o *TodoOps) ListLists() (any, error) {
	return o.c.get("/me/todo/lists", nil)
}

func (o *TodoOps) ListTasks(listID string) (any, error) {
	return o.c.get("/me/todo/lists/"+url.PathEscape(listID)+"/tasks", nil)
}

func (o *TodoOps) CreateTask(listID string, task map[string]any) (any, error) {
	return o.c.call("/me/todo/lists/"+url.PathEscape(listID)+"/tasks",
		graph.RequestOptions{Method: http.MethodPost, Body: task})
}

func (o *TodoOps) UpdateTask(listID, taskID string, patch map[string]any) (any, error) {
	return o.c.call("/me/todo/lists/"+url.PathEscape(listID)+"/tasks/"+url.PathEscape(taskID),
		graph.RequestOptions{Method: http.MethodPatch, Body: patch})
}
