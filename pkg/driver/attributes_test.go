package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
		want  map[string]interface{}
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"null literal", "null", nil},
		{"valid json", `{"confidence": 0.9}`, map[string]interface{}{"confidence": 0.9}},
		{"trailing comma", `{"source": "chat",}`, map[string]interface{}{"source": "chat"}},
		{"map passthrough", map[string]interface{}{"k": "v"}, map[string]interface{}{"k": "v"}},
		{"unsupported type", 42, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DecodeAttributes(tt.input))
		})
	}
}
