package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	tests := []struct {
		name  string
		slice []string
		val   string
		want  bool
	}{
		{"member id present", []string{"p1", "p2", "p3"}, "p2", true},
		{"member id absent", []string{"p1", "p2", "p3"}, "p9", false},
		{"empty slice", []string{}, "p1", false},
		{"nil slice", nil, "p1", false},
		{"empty string member", []string{"p1", ""}, "", true},
		{"comparison is case sensitive", []string{"Cafe"}, "cafe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.slice, tt.val))
		})
	}
}

func TestContainsCaseInsensitive(t *testing.T) {
	categories := []string{"Cafe", "Bakery", "Museum"}

	tests := []struct {
		name string
		val  string
		want bool
	}{
		{"exact casing", "Cafe", true},
		{"lower against title", "cafe", true},
		{"upper against title", "MUSEUM", true},
		{"mixed casing", "bAkErY", true},
		{"absent either way", "bar", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(categories, tt.val, WithCaseInsensitive()))
		})
	}

	assert.False(t, Contains(nil, "cafe", WithCaseInsensitive()))
}

func TestContainsAny(t *testing.T) {
	keys := []string{"sig-01", "sig-02", "sig-03"}

	tests := []struct {
		name string
		vals []string
		want bool
	}{
		{"one of several present", []string{"sig-09", "sig-02"}, true},
		{"all present", []string{"sig-01", "sig-03"}, true},
		{"none present", []string{"sig-08", "sig-09"}, false},
		{"no candidates", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsAny(keys, tt.vals...))
		})
	}

	assert.False(t, ContainsAny(nil, "sig-01"))
	assert.False(t, ContainsAny([]string{}, "sig-01"))
}

func TestOmit(t *testing.T) {
	tests := []struct {
		name  string
		slice []string
		vals  []string
		want  []string
	}{
		{"remove one member", []string{"p1", "p2", "p3"}, []string{"p2"}, []string{"p1", "p3"}},
		{"remove several", []string{"p1", "p2", "p3"}, []string{"p1", "p3"}, []string{"p2"}},
		{"remove everything", []string{"p1", "p2"}, []string{"p1", "p2"}, nil},
		{"remove nothing", []string{"p1", "p2"}, []string{"p9"}, []string{"p1", "p2"}},
		{"duplicates all removed", []string{"p1", "p2", "p1"}, []string{"p1"}, []string{"p2"}},
		{"order preserved", []string{"p3", "p1", "p2"}, []string{"p1"}, []string{"p3", "p2"}},
		{"empty slice", []string{}, []string{"p1"}, nil},
		{"nil slice", nil, []string{"p1"}, nil},
		{"no removal values", []string{"p1", "p2"}, nil, []string{"p1", "p2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Omit(tt.slice, tt.vals...))
		})
	}
}
