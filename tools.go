package rtcvoice

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// ToolFunc is a client-side function the remote service may invoke.
// It receives the JSON-encoded argument object from the function-call event
// and returns a result to be serialized back, or an error. Implementation
// errors propagate to the caller uncaught; the protocol layer converts them
// into a protocol-level error result.
type ToolFunc func(args json.RawMessage) (any, error)

// ToolDescriptor describes a tool to the remote service. It is declared in
// the session-configuration message; Name is the join key with registry
// bindings and must match the identifier the service uses in function-call
// events. Immutable once registered.
type ToolDescriptor struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Tool couples a descriptor with its implementation.
type Tool struct {
	ToolDescriptor
	Func ToolFunc
}

// NewTool builds a Tool whose parameter schema is reflected from the
// argument struct type A. The implementation receives the decoded arguments.
//
//	tool := NewTool("getWeather", "Current weather for a city",
//		func(args struct {
//			City string `json:"city"`
//		}) (any, error) {
//			return lookupWeather(args.City)
//		})
func NewTool[A any](name, description string, fn func(A) (any, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero A
	schema := reflector.Reflect(&zero)
	schema.Version = ""
	return Tool{
		ToolDescriptor: ToolDescriptor{
			Type:        "function",
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Func: func(args json.RawMessage) (any, error) {
			var a A
			if len(args) > 0 {
				if err := json.Unmarshal(args, &a); err != nil {
					return nil, fmt.Errorf("decode arguments: %w", err)
				}
			}
			return fn(a)
		},
	}
}

// NewSimpleTool builds a Tool that takes no arguments.
func NewSimpleTool(name, description string, fn func() (any, error)) Tool {
	return Tool{
		ToolDescriptor: ToolDescriptor{
			Type:        "function",
			Name:        name,
			Description: description,
			Parameters:  &jsonschema.Schema{Type: "object"},
		},
		Func: func(json.RawMessage) (any, error) { return fn() },
	}
}

// ToolRegistry maps function names to callable implementations. It is an
// explicitly owned instance passed into the SessionController, not an
// ambient global, so independent sessions can carry independent tool sets.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string // registration order, for stable descriptor lists
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register binds a tool, overwriting any prior binding for the same name.
// Last registration wins, which supports hot-swapping implementations
// between sessions. May be called before or during an active session; a
// mid-session registration affects function calls arriving from that point
// forward.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// RegisterFunc binds a bare implementation under a name with an empty
// parameter schema.
func (r *ToolRegistry) RegisterFunc(name, description string, fn ToolFunc) {
	r.Register(Tool{
		ToolDescriptor: ToolDescriptor{
			Type:        "function",
			Name:        name,
			Description: description,
			Parameters:  &jsonschema.Schema{Type: "object"},
		},
		Func: fn,
	})
}

// Invoke executes the named tool. Returns ErrToolNotFound (wrapped) for
// unregistered names; implementation errors are returned as-is, uncaught.
func (r *ToolRegistry) Invoke(name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return t.Func(args)
}

// Descriptors returns the descriptor list in registration order, for the
// session-configuration message.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].ToolDescriptor)
	}
	return out
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
