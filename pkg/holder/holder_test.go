package holder

import "testing"

func TestResolveRendererPrecedence(t *testing.T) {
	declared := NamedRenderer("bootstrap")
	passed := NamedRenderer("tailwind")

	if got := ResolveRenderer(declared, nil, passed); got.Name() != "bootstrap" {
		t.Fatalf("expected declared renderer to win, got %q", got.Name())
	}

	calls := 0
	factory := func() Renderer {
		calls++
		return NamedRenderer("factory")
	}
	if got := ResolveRenderer(nil, factory, passed); got.Name() != "factory" {
		t.Fatalf("expected factory renderer, got %q", got.Name())
	}
	if calls != 1 {
		t.Fatalf("expected factory to be invoked once, got %d", calls)
	}

	if got := ResolveRenderer(nil, nil, passed); got.Name() != "tailwind" {
		t.Fatalf("expected passed renderer, got %q", got.Name())
	}
	if got := ResolveRenderer(nil, nil, nil); got != DefaultRenderer() {
		t.Fatalf("expected default renderer singleton")
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		value any
		empty bool
	}{
		{nil, true},
		{"", true},
		{map[string]any{}, true},
		{[]any{}, true},
		{0, true},
		{false, true},
		{"x", false},
		{map[string]any{"a": 1}, false},
		{[]any{nil}, false},
		{3, false},
	}
	for _, tc := range cases {
		if got := IsEmpty(tc.value); got != tc.empty {
			t.Fatalf("IsEmpty(%#v) = %v, want %v", tc.value, got, tc.empty)
		}
	}
}

func TestStatePositionLabel(t *testing.T) {
	s := &State{Position: 12}
	if got := s.PositionLabel(); got != "12" {
		t.Fatalf("expected 12, got %q", got)
	}
	s.PositionToken = "${position_1}"
	if got := s.PositionLabel(); got != "${position_1}" {
		t.Fatalf("expected token, got %q", got)
	}
}

func TestIsMarkedForRemoval(t *testing.T) {
	cases := []struct {
		data any
		want bool
	}{
		{data: nil, want: false},
		{data: map[string]any{}, want: false},
		{data: map[string]any{MarkedForRemoval: true}, want: true},
		{data: map[string]any{MarkedForRemoval: "on"}, want: true},
		{data: map[string]any{MarkedForRemoval: "false"}, want: false},
		{data: map[string]any{MarkedForRemoval: []any{"", "true"}}, want: true},
		{data: []any{map[string]any{MarkedForRemoval: true}}, want: false},
	}
	for _, tc := range cases {
		if got := IsMarkedForRemoval(tc.data); got != tc.want {
			t.Fatalf("IsMarkedForRemoval(%#v) = %v, want %v", tc.data, got, tc.want)
		}
	}
}
