package rtcvoice

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestToolRegistry_RegisterLastWins(t *testing.T) {
	registry := NewToolRegistry()

	registry.RegisterFunc("greet", "first binding", func(json.RawMessage) (any, error) {
		return "first", nil
	})
	registry.RegisterFunc("greet", "second binding", func(json.RawMessage) (any, error) {
		return "second", nil
	})

	if registry.Len() != 1 {
		t.Fatalf("expected 1 binding, got %d", registry.Len())
	}

	result, err := registry.Invoke("greet", nil)
	if err != nil {
		t.Fatalf("unexpected invoke error: %v", err)
	}
	if result != "second" {
		t.Errorf("result = %v, want the last registered binding", result)
	}

	descriptors := registry.Descriptors()
	if len(descriptors) != 1 || descriptors[0].Description != "second binding" {
		t.Errorf("descriptor not replaced: %+v", descriptors)
	}
}

func TestToolRegistry_DescriptorOrder(t *testing.T) {
	registry := NewToolRegistry()
	names := []string{"zeta", "alpha", "mid"}
	for _, name := range names {
		registry.RegisterFunc(name, "", func(json.RawMessage) (any, error) { return nil, nil })
	}

	// Re-registering must not change position.
	registry.RegisterFunc("zeta", "replaced", func(json.RawMessage) (any, error) { return nil, nil })

	descriptors := registry.Descriptors()
	if len(descriptors) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descriptors))
	}
	for i, name := range names {
		if descriptors[i].Name != name {
			t.Errorf("descriptor %d = %q, want %q (registration order)", i, descriptors[i].Name, name)
		}
	}
}

func TestToolRegistry_InvokeUnknown(t *testing.T) {
	registry := NewToolRegistry()

	_, err := registry.Invoke("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for unregistered tool")
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("error should match ErrToolNotFound, got %v", err)
	}
}

func TestNewTool_ArgumentDecoding(t *testing.T) {
	tool := NewTool("add", "Add two integers",
		func(args struct {
			A int `json:"a"`
			B int `json:"b"`
		}) (any, error) {
			return args.A + args.B, nil
		})

	if tool.Type != "function" || tool.Name != "add" {
		t.Errorf("descriptor = %+v", tool.ToolDescriptor)
	}
	if tool.Parameters == nil {
		t.Fatal("parameter schema should be reflected from the argument type")
	}
	schemaJSON, err := json.Marshal(tool.Parameters)
	if err != nil {
		t.Fatalf("schema should serialize: %v", err)
	}
	for _, field := range []string{`"a"`, `"b"`} {
		if !strings.Contains(string(schemaJSON), field) {
			t.Errorf("schema missing field %s: %s", field, schemaJSON)
		}
	}

	result, err := tool.Func(json.RawMessage(`{"a":2,"b":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 5 {
		t.Errorf("result = %v, want 5", result)
	}

	if _, err := tool.Func(json.RawMessage(`{"a":"not a number"}`)); err == nil {
		t.Error("mistyped arguments should produce an error")
	}
}

func TestNewSimpleTool(t *testing.T) {
	tool := NewSimpleTool("ping", "Always pongs", func() (any, error) {
		return "pong", nil
	})

	// Simple tools ignore any arguments sent by the remote side.
	result, err := tool.Func(json.RawMessage(`{"unexpected":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "pong" {
		t.Errorf("result = %v, want pong", result)
	}
}

func TestCurrentTimeTool(t *testing.T) {
	tool := CurrentTimeTool()
	if tool.Name != "getCurrentTime" {
		t.Errorf("name = %q", tool.Name)
	}

	result, err := tool.Func(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := result.(string)
	if !ok || s == "" {
		t.Fatalf("result = %v, want non-empty string", result)
	}
	if !strings.Contains(s, strconv.Itoa(time.Now().Year())) {
		t.Errorf("result %q should contain the current year", s)
	}
}

func TestCalculateTool(t *testing.T) {
	tool := CalculateTool()

	tests := []struct {
		name        string
		args        string
		want        string
		expectError bool
	}{
		{"basic arithmetic", `{"expression":"(2+3)*4"}`, "20", false},
		{"division", `{"expression":"10 / 4"}`, "2.5", false},
		{"empty expression", `{"expression":""}`, "", true},
		{"malformed expression", `{"expression":"2 +"}`, "", true},
		{"unknown identifier", `{"expression":"os.Exit(1)"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Func(json.RawMessage(tt.args))
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got result %v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.want {
				t.Errorf("result = %v, want %v", result, tt.want)
			}
		})
	}
}
