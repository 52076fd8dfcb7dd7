// Package capabilities is the closed object graph exposed to sandboxed
// scripts as `cap`. It is the only side-effecting surface reachable from
// script code; every operation delegates to the graph client and hands the
// script a plain value decoded from the response envelope.
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/graph"
)

// Client is the slice of the graph client the facade needs.
type Client interface {
	CallAPI(ctx context.Context, path string, opts graph.RequestOptions) (*graph.CallResult, error)
}

// Facade groups the per-domain operation sets. Field names surface in script
// scope uncapitalized: cap.mail, cap.calendar, cap.teams, cap.files,
// cap.sites, cap.planner, cap.todo.
type Facade struct {
	Mail     *MailOps
	Calendar *CalendarOps
	Teams    *TeamsOps
	Files    *FilesOps
	Sites    *SitesOps
	Planner  *PlannerOps
	Todo     *TodoOps
}

// New builds a facade bound to ctx for the duration of one script run.
func New(ctx context.Context, client Client) *Facade {
	return newFacade(ctx, client, false)
}

// NewReadOnly builds a facade whose mutating operations fail instead of
// reaching the Graph API. Used when the server runs in read-only mode.
func NewReadOnly(ctx context.Context, client Client) *Facade {
	return newFacade(ctx, client, true)
}

func newFacade(ctx context.Context, client Client, readOnly bool) *Facade {
	c := &caller{ctx: ctx, client: client, readOnly: readOnly}
	return &Facade{
		Mail:     &MailOps{c},
		Calendar: &CalendarOps{c},
		Teams:    &TeamsOps{c},
		Files:    &FilesOps{c},
		Sites:    &SitesOps{c},
		Planner:  &PlannerOps{c},
		Todo:     &TodoOps{c},
	}
}

type caller struct {
	ctx      context.Context
	client   Client
	readOnly bool
}

// call performs the request and unwraps content[0].text into a plain value.
func (c *caller) call(path string, opts graph.RequestOptions) (any, error) {
	if c.readOnly && opts.Method != "" && opts.Method != "GET" {
		return nil, fmt.Errorf("operation %s %s rejected: server is in read-only mode", opts.Method, path)
	}
	res, err := c.client.CallAPI(c.ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Content) == 0 || res.Content[0].Text == "" {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal([]byte(res.Content[0].Text), &value); err != nil {
		return nil, fmt.Errorf("decode graph payload: %w", err)
	}
	return value, nil
}

func (c *caller) get(path string, opts map[string]any) (any, error) {
	return c.call(path, graph.RequestOptions{Query: odataQuery(opts)})
}

// odataQuery maps the script-facing option names onto OData query parameters.
// Unknown keys are ignored rather than passed through.
func odataQuery(opts map[string]any) url.Values {
	if len(opts) == 0 {
		return nil
	}
	q := url.Values{}
	for key, param := range map[string]string{
		"filter":  "$filter",
		"select":  "$select",
		"search":  "$search",
		"orderby": "$orderby",
		"expand":  "$expand",
		"top":     "$top",
		"skip":    "$skip",
	} {
		if v, ok := opts[key]; ok {
			q.Set(param, fmt.Sprint(v))
		}
	}
	if len(q) == 0 {
		return nil
	}
	return q
}
