package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jellydator/validation"
	"golang.org/x/oauth2"

	"github.com/rocket-approval/mortgage-agent/internal/logger"
	"github.com/rocket-approval/mortgage-agent/internal/models"
)

var ErrUnknownTool = errors.New("unknown tool")

// Requirement describes the OAuth2 authorization a tool needs before it runs.
type Requirement struct {
	Provider     string   `json:"provider"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	RedirectURL  string   `json:"redirect_url"`
	Scopes       []string `json:"scopes"`
}

// Param documents one tool input. Non-inferrable params are filled from the
// tool context and never read from caller input.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Inferrable  bool   `json:"inferrable"`
}

// Handler runs a tool with already-sanitised input.
type Handler func(ctx context.Context, tc *Context, input json.RawMessage) (models.Response[any], error)

type Tool struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Params      []Param      `json:"params"`
	Auth        *Requirement `json:"auth,omitempty"`
	Sensitive   bool         `json:"sensitive"`
	Handler     Handler      `json:"-"`
}

// Context carries per-conversation values into a tool call.
type Context struct {
	UserID      string
	Session     models.Session
	TokenSource oauth2.TokenSource
}

// Apply copies loan and session identifiers out of a successful tool response.
func (c *Context) Apply(resp models.Response[any]) {
	if !resp.Success || resp.Data == nil {
		return
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return
	}
	var ids models.Session
	if err := json.Unmarshal(data, &ids); err != nil {
		return
	}

	if ids.RmLoanID != "" {
		c.Session.RmLoanID = ids.RmLoanID
	}
	if ids.SessionToken != "" {
		c.Session.SessionToken = ids.SessionToken
	}
	if ids.RocketAccountID != "" {
		c.Session.RocketAccountID = ids.RocketAccountID
	}
}

// Authorizer supplies OAuth2 credentials for tools that declare a Requirement.
type Authorizer interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
	AuthorizationURL(userID string) (string, error)
}

// Registry holds the callable tools.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	authorizer Authorizer
}

func NewRegistry(authorizer Authorizer) *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		authorizer: authorizer,
	}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		list = append(list, tool)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// AuthorizationRequired is the payload returned when a tool needs the user to sign in first.
type AuthorizationRequired struct {
	AuthorizationURL string   `json:"authorization_url,omitempty"`
	Scopes           []string `json:"scopes"`
}

// Execute runs a tool and converts every failure into an unsuccessful Response.
func (r *Registry) Execute(ctx context.Context, name string, tc *Context, input json.RawMessage) models.Response[any] {
	tool, ok := r.Lookup(name)
	if !ok {
		return models.Failure[any](fmt.Sprintf("Error: %v: %s", ErrUnknownTool, name))
	}
	if tc == nil {
		tc = &Context{}
	}

	if tool.Auth != nil {
		if resp, ok := r.authorize(ctx, tool, tc); !ok {
			return resp
		}
	}

	sanitized, err := sanitize(tool, input)
	if err != nil {
		return models.Failure[any](fmt.Sprintf("Error: %v\n please fix your mistakes.", err))
	}

	logger.Debug("Running tool %s", tool.Name)
	resp, err := tool.Handler(ctx, tc, sanitized)
	if err != nil {
		logger.Error("Tool %s failed: %v", tool.Name, err)
		return models.Failure[any](fmt.Sprintf("Error: %v\n please fix your mistakes.", err))
	}

	tc.Apply(resp)
	return resp
}

func (r *Registry) authorize(ctx context.Context, tool Tool, tc *Context) (models.Response[any], bool) {
	if r.authorizer == nil {
		return models.Failure[any](fmt.Sprintf("%s requires %s authorization, which is not configured", tool.Name, tool.Auth.Provider)), false
	}

	ts, err := r.authorizer.TokenSource(ctx, tc.UserID)
	if err == nil {
		tc.TokenSource = ts
		return models.Response[any]{}, true
	}

	logger.Info("Tool %s needs authorization for %q: %v", tool.Name, tc.UserID, err)
	authURL, urlErr := r.authorizer.AuthorizationURL(tc.UserID)
	if urlErr != nil {
		return models.Failure[any](fmt.Sprintf("%s requires authorization: %v", tool.Name, urlErr)), false
	}

	resp := models.Failure[any](fmt.Sprintf("Authorization required. Visit %s to grant access, then try again.", authURL))
	resp.Data = AuthorizationRequired{AuthorizationURL: authURL, Scopes: tool.Auth.Scopes}
	return resp, false
}

// sanitize drops non-inferrable keys and checks required params.
func sanitize(tool Tool, input json.RawMessage) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(input)) > 0 {
		if err := json.Unmarshal(input, &fields); err != nil {
			return nil, fmt.Errorf("input must be a JSON object: %w", err)
		}
	}

	for _, p := range tool.Params {
		if !p.Inferrable {
			delete(fields, p.Name)
			continue
		}
		if _, ok := fields[p.Name]; p.Required && !ok {
			return nil, fmt.Errorf("missing required parameter %q", p.Name)
		}
	}

	return json.Marshal(fields)
}

// typed adapts a handler over a concrete input type; inputs implementing
// validation.Validatable are validated before the handler runs.
func typed[In any](fn func(ctx context.Context, tc *Context, in In) (models.Response[any], error)) Handler {
	return func(ctx context.Context, tc *Context, input json.RawMessage) (models.Response[any], error) {
		var in In
		dec := json.NewDecoder(bytes.NewReader(input))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return models.Response[any]{}, fmt.Errorf("decoding input: %w", err)
		}
		if v, ok := any(in).(validation.Validatable); ok {
			if err := v.Validate(); err != nil {
				return models.Response[any]{}, fmt.Errorf("validating input: %w", err)
			}
		}
		return fn(ctx, tc, in)
	}
}
