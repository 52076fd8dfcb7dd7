package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/sandbox"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("execute-script",
		mcp.WithDescription("Run an ad-hoc automation script against the Microsoft 365 capability object (`cap`). The script body may use await and must produce its result with an explicit return."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script body to execute")),
		mcp.WithNumber("timeoutMs", mcp.Description("Wall-clock budget in milliseconds (default 30000)")),
	), s.handleExecuteScript)

	s.mcp.AddTool(mcp.NewTool("execute-skill",
		mcp.WithDescription("Run a saved skill by id or name, with optional parameters bound as `params` inside the script."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill id or name")),
		mcp.WithObject("params", mcp.Description("Parameter values merged with the skill's declared defaults")),
		mcp.WithNumber("timeoutMs", mcp.Description("Wall-clock budget in milliseconds (default 30000)")),
	), s.handleExecuteSkill)

	s.mcp.AddTool(mcp.NewTool("get-skill",
		mcp.WithDescription("Fetch a skill definition by id or name."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill id or name")),
	), s.handleGetSkill)

	s.mcp.AddTool(mcp.NewTool("list-skills",
		mcp.WithDescription("List skills, optionally filtered, ordered by usage count descending."),
		mcp.WithString("category", mcp.Description("Filter by category (mail, calendar, teams, files, sites, planner, todo, other)")),
		mcp.WithString("author", mcp.Description("Filter by author")),
		mcp.WithBoolean("isPublic", mcp.Description("Filter by visibility flag")),
		mcp.WithBoolean("isBuiltin", mcp.Description("Filter by builtin flag")),
		mcp.WithArray("tags", mcp.Description("Match skills carrying at least one of these tags")),
	), s.handleListSkills)

	s.mcp.AddTool(mcp.NewTool("search-skills",
		mcp.WithDescription("Case-insensitive substring search over skill names, descriptions and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.handleSearchSkills)

	s.mcp.AddTool(mcp.NewTool("validate-code",
		mcp.WithDescription("Statically check script text against the forbidden-pattern deny list."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script text to check")),
	), s.handleValidateCode)

	if s.readOnly {
		return
	}

	s.mcp.AddTool(mcp.NewTool("create-skill",
		mcp.WithDescription("Save a new named skill. Names must be unique; code is validated before saving."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique skill name")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What the skill does")),
		mcp.WithString("category", mcp.Required(), mcp.Description("One of mail, calendar, teams, files, sites, planner, todo, other; anything else is bucketed under other")),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script body")),
		mcp.WithObject("parameters", mcp.Description("Parameter declarations: name -> {type, description, required, default}")),
		mcp.WithString("returnType", mcp.Description("Free-text description of the return value")),
		mcp.WithString("author", mcp.Description("Author label")),
		mcp.WithArray("tags", mcp.Description("Free-text labels")),
		mcp.WithBoolean("isPublic", mcp.Description("Visibility flag")),
	), s.handleCreateSkill)

	s.mcp.AddTool(mcp.NewTool("update-skill",
		mcp.WithDescription("Update fields of an existing skill by id. Omitted fields are left unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill id")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithString("code", mcp.Description("New script body (re-validated)")),
		mcp.WithObject("parameters", mcp.Description("Replacement parameter declarations")),
		mcp.WithString("returnType", mcp.Description("New return-type text")),
		mcp.WithArray("tags", mcp.Description("Replacement tags")),
		mcp.WithBoolean("isPublic", mcp.Description("Visibility flag")),
	), s.handleUpdateSkill)

	s.mcp.AddTool(mcp.NewTool("delete-skill",
		mcp.WithDescription("Delete a skill by id. Builtin skills cannot be deleted."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill id")),
	), s.handleDeleteSkill)
}

// --- Handlers ---

func (s *Server) handleExecuteScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	code := argString(args, "code")
	if code == "" {
		return mcp.NewToolResultError("validation error: code is required"), nil
	}
	result, err := s.executor.ExecuteScript(ctx, code, argTimeout(args))
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(map[string]any{"result": result})
}

func (s *Server) handleExecuteSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	idOrName := argString(args, "skill")
	if idOrName == "" {
		return mcp.NewToolResultError("validation error: skill is required"), nil
	}
	run, err := s.executor.Run(ctx, idOrName, argMap(args, "params"), argTimeout(args))
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(run)
}

func (s *Server) handleGetSkill(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idOrName := argString(req.GetArguments(), "skill")
	skill, err := s.store.Get(idOrName)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			skill, err = s.store.GetByName(idOrName)
		}
	}
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(skill)
}

func (s *Server) handleListSkills(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	filter := &store.ListFilter{
		Category: normalizeCategory(argString(args, "category")),
		Author:   argString(args, "author"),
		Tags:     argStringSlice(args, "tags"),
	}
	if v, ok := args["isPublic"].(bool); ok {
		filter.IsPublic = &v
	}
	if v, ok := args["isBuiltin"].(bool); ok {
		filter.IsBuiltin = &v
	}
	list, err := s.store.List(filter)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(map[string]any{"count": len(list), "skills": list})
}

func (s *Server) handleSearchSkills(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := argString(req.GetArguments(), "query")
	list, err := s.store.Search(query)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(map[string]any{"count": len(list), "skills": list})
}

func (s *Server) handleValidateCode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(sandbox.ValidateCode(argString(req.GetArguments(), "code")))
}

func (s *Server) handleCreateSkill(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name := argString(args, "name")

	// Name uniqueness is advisory: checked here, not enforced by the store.
	if _, err := s.store.GetByName(name); err == nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation error: a skill named %q already exists", name)), nil
	} else {
		var nf *store.NotFoundError
		if !errors.As(err, &nf) {
			return mcp.NewToolResultError(errorText(err)), nil
		}
	}

	code := argString(args, "code")
	if v := sandbox.ValidateCode(code); !v.Valid {
		return mcp.NewToolResultError(errorText(&store.ValidationError{Problems: v.Errors})), nil
	}

	params, err := decodeParamSpecs(argMap(args, "parameters"))
	if err != nil {
		return mcp.NewToolResultError("validation error: " + err.Error()), nil
	}

	skill := &store.Skill{
		Name:        name,
		Description: argString(args, "description"),
		Category:    normalizeCategory(argString(args, "category")),
		Code:        code,
		Parameters:  params,
		ReturnType:  argString(args, "returnType"),
		Author:      argString(args, "author"),
		Tags:        argStringSlice(args, "tags"),
	}
	if v, ok := args["isPublic"].(bool); ok {
		skill.IsPublic = v
	}
	saved, err := s.store.Save(skill)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(saved)
}

func (s *Server) handleUpdateSkill(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	skill, err := s.store.Get(argString(args, "id"))
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}

	if v := argString(args, "name"); v != "" {
		skill.Name = v
	}
	if v := argString(args, "description"); v != "" {
		skill.Description = v
	}
	if v := argString(args, "category"); v != "" {
		skill.Category = normalizeCategory(v)
	}
	if v := argString(args, "returnType"); v != "" {
		skill.ReturnType = v
	}
	if _, ok := args["tags"]; ok {
		skill.Tags = argStringSlice(args, "tags")
	}
	if v, ok := args["isPublic"].(bool); ok {
		skill.IsPublic = v
	}
	if raw, ok := args["parameters"]; ok {
		params, err := decodeParamSpecs(asMap(raw))
		if err != nil {
			return mcp.NewToolResultError("validation error: " + err.Error()), nil
		}
		skill.Parameters = params
	}
	if v := argString(args, "code"); v != "" && v != skill.Code {
		if res := sandbox.ValidateCode(v); !res.Valid {
			return mcp.NewToolResultError(errorText(&store.ValidationError{Problems: res.Errors})), nil
		}
		skill.Code = v
	}

	saved, err := s.store.Save(skill)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(saved)
}

func (s *Server) handleDeleteSkill(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := argString(req.GetArguments(), "id")
	skill, err := s.store.Get(id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return jsonResult(map[string]any{"deleted": false})
		}
		return mcp.NewToolResultError(errorText(err)), nil
	}
	if skill.IsBuiltin {
		return mcp.NewToolResultError(fmt.Sprintf("validation error: %q is a builtin skill and cannot be deleted", skill.Name)), nil
	}
	deleted, err := s.store.Delete(id)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	return jsonResult(map[string]any{"deleted": deleted})
}

// --- Argument helpers ---

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argMap(args map[string]any, key string) map[string]any {
	return asMap(args[key])
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argTimeout(args map[string]any) time.Duration {
	if v, ok := args["timeoutMs"].(float64); ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return 0
}

// normalizeCategory buckets unknown categories under "other"; empty stays
// empty (no filter / caught by save-time validation for missing values).
func normalizeCategory(c string) string {
	if c == "" || store.ValidCategory(c) {
		return c
	}
	return store.CategoryOther
}

func decodeParamSpecs(raw map[string]any) (map[string]store.ParamSpec, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parameters not serializable: %w", err)
	}
	var params map[string]store.ParamSpec
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parameters must map names to {type, description, required, default}: %w", err)
	}
	return params, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
