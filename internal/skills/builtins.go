// Package skills seeds the built-in catalog and executes stored skills
// through the sandbox engine.
package skills

import (
	"errors"
	"log/slog"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

const builtinAuthor = "ms-365-mcp-server"

// builtinCatalog is the fixed set of skills installed at startup.
var builtinCatalog = []store.Skill{
	{
		Name:        "unreadCount",
		Description: "Count unread messages in the inbox",
		Category:    store.CategoryMail,
		Tags:        []string{"mail", "inbox", "unread"},
		ReturnType:  "number of unread messages",
		Code: `const m = await cap.mail.list({ filter: "isRead eq false", top: 100 });
return m.value.length;`,
	},
	{
		Name:        "inboxSummary",
		Description: "Summarize the most recent inbox messages as sender/subject pairs",
		Category:    store.CategoryMail,
		Tags:        []string{"mail", "inbox", "summary"},
		ReturnType:  "array of {from, subject, receivedDateTime}",
		Parameters: map[string]store.ParamSpec{
			"count": {Type: "number", Description: "how many messages to include", Default: 10},
		},
		Code: `const m = await cap.mail.list({ top: params.count, orderby: "receivedDateTime desc" });
return m.value.map(msg => ({
  from: msg.from && msg.from.emailAddress ? msg.from.emailAddress.address : "",
  subject: msg.subject,
  receivedDateTime: msg.receivedDateTime,
}));`,
	},
	{
		Name:        "todayAgenda",
		Description: "List today's calendar events in start-time order",
		Category:    store.CategoryCalendar,
		Tags:        []string{"calendar", "agenda", "today"},
		ReturnType:  "array of {subject, start, end, location}",
		Code: `const today = new Date().toISOString().slice(0, 10);
const events = await cap.calendar.list({
  filter: "start/dateTime ge '" + today + "T00:00:00' and start/dateTime le '" + today + "T23:59:59'",
  orderby: "start/dateTime",
});
return events.value.map(e => ({
  subject: e.subject,
  start: e.start ? e.start.dateTime : "",
  end: e.end ? e.end.dateTime : "",
  location: e.location ? e.location.displayName : "",
}));`,
	},
	{
		Name:        "myTeams",
		Description: "List joined teams with their channels",
		Category:    store.CategoryTeams,
		Tags:        []string{"teams", "channels"},
		ReturnType:  "array of {team, channels}",
		Code: `const teams = await cap.teams.list({});
const out = [];
for (const t of teams.value) {
  const channels = await cap.teams.listChannels(t.id);
  out.push({ team: t.displayName, channels: channels.value.map(c => c.displayName) });
}
return out;`,
	},
	{
		Name:        "recentFiles",
		Description: "List files at the OneDrive root, most recently modified first",
		Category:    store.CategoryFiles,
		Tags:        []string{"files", "onedrive"},
		ReturnType:  "array of {name, lastModifiedDateTime, size}",
		Parameters: map[string]store.ParamSpec{
			"count": {Type: "number", Description: "how many files to include", Default: 10},
		},
		Code: `const items = await cap.files.list({ top: params.count, orderby: "lastModifiedDateTime desc" });
return items.value.map(f => ({
  name: f.name,
  lastModifiedDateTime: f.lastModifiedDateTime,
  size: f.size,
}));`,
	},
	{
		Name:        "openPlannerTasks",
		Description: "List planner tasks that are not yet complete",
		Category:    store.CategoryPlanner,
		Tags:        []string{"planner", "tasks"},
		ReturnType:  "array of {title, percentComplete, dueDateTime}",
		Code: `const tasks = await cap.planner.listTasks({});
return tasks.value
  .filter(t => t.percentComplete < 100)
  .map(t => ({ title: t.title, percentComplete: t.percentComplete, dueDateTime: t.dueDateTime }));`,
	},
	{
		Name:        "todoOverview",
		Description: "Count open tasks in every to-do list",
		Category:    store.CategoryTodo,
		Tags:        []string{"todo", "tasks"},
		ReturnType:  "array of {list, openTasks}",
		Code: `const lists = await cap.todo.listLists();
const out = [];
for (const l of lists.value) {
  const tasks = await cap.todo.listTasks(l.id);
  out.push({ list: l.displayName, openTasks: tasks.value.filter(t => t.status !== "completed").length });
}
return out;`,
	},
}

// LoadBuiltins installs the catalog into the store, skipping names that
// already exist. Safe to call on every startup; a second call against a
// seeded store loads nothing. Individual failures are logged and do not abort
// the rest of the catalog.
func LoadBuiltins(s store.SkillStore) int {
	loaded := 0
	for i := range builtinCatalog {
		def := builtinCatalog[i].Clone()
		_, err := s.GetByName(def.Name)
		if err == nil {
			continue
		}
		var nf *store.NotFoundError
		if !errors.As(err, &nf) {
			slog.Warn("builtin skill lookup failed", "name", def.Name, "error", err)
			continue
		}
		def.IsBuiltin = true
		def.IsPublic = true
		def.Author = builtinAuthor
		if _, err := s.Save(def); err != nil {
			slog.Warn("builtin skill load failed", "name", def.Name, "error", err)
			continue
		}
		loaded++
	}
	if loaded > 0 {
		slog.Info("builtin skills loaded", "count", loaded)
	}
	return loaded
}
