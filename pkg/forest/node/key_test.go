package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaturalKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"caller id", map[string]any{"id": "abc", "name": "X"}, "abc"},
		{"numeric id", map[string]any{"id": 7.0}, "7"},
		{"empty id falls back", map[string]any{"id": "", "name": "X"}, "idnameX"},
		{"nil id falls back", map[string]any{"id": nil, "name": "X"}, "idnullnameX"},
		{"derived", map[string]any{"name": "Hello, World!"}, "nameHelloWorld"},
		{"no fields", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NaturalKey(tt.fields))
		})
	}
}

func TestDeriveKeyDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	fields := map[string]any{"zeta": "1", "alpha": "2", "name": "a very long display value that keeps going and going"}

	first := DeriveKey(fields)
	second := DeriveKey(map[string]any{"name": fields["name"], "alpha": "2", "zeta": "1"})

	assert.Equal(t, first, second)
	assert.Len(t, first, derivedKeyMaxLen)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, first)
	assert.Equal(t, "alpha2nameaverylongdisplayvaluethatkeeps", first)
}

func TestDeriveKeyIgnoresStructuralFields(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		DeriveKey(map[string]any{"name": "A"}),
		DeriveKey(map[string]any{"name": "A", "children": []any{1}, "_iid": "x"}),
	)
}
