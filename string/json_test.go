package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type statLine struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

func TestJSONStringify(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
	}{
		{"string", "place:detail:p1", `"place:detail:p1"`},
		{"number", 86400, `86400`},
		{"boolean", false, `false`},
		{"nil", nil, `null`},
		{"struct keeps field order", statLine{Name: "location", Entries: 1}, `{"name":"location","entries":1}`},
		{"slice of structs", []statLine{{"place:detail", 2}, {"search", 5}}, `[{"name":"place:detail","entries":2},{"name":"search","entries":5}]`},
		{"map keys sorted", map[string]int{"stale": 1, "fresh": 2}, `{"fresh":2,"stale":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JSONStringify(tt.input))
		})
	}
}

func TestJSONStringifyPretty(t *testing.T) {
	got := JSONStringify(statLine{Name: "location", Entries: 1}, true)
	assert.Equal(t, "{\n  \"name\": \"location\",\n  \"entries\": 1\n}", got)
}

func TestJSONStringifyPanicsOnUnmarshalable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic for a channel field")
		}
	}()
	JSONStringify(struct{ Ch chan int }{make(chan int)})
}
