package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialFragment(t *testing.T) {
	tests := []struct {
		title string
		want  string
		found bool
	}{
		{"2021 Topps Gold #12/99 Trout", "12/99", true},
		{"2021 Topps Gold 12 / 99 Trout", "12/99", true},
		{"numbered 1/1 superfractor", "1/1", true},
		{"2021 Topps Chrome #50 Mike Trout", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := SerialFragment(tt.title)
		assert.Equal(t, tt.found, ok, "title %q", tt.title)
		assert.Equal(t, tt.want, got, "title %q", tt.title)
	}
}
