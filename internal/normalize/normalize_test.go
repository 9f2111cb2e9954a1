package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle_Idempotent(t *testing.T) {
	titles := []string{
		"",
		"2021 Topps Chrome Refractor #50 Mike Trout",
		"1995 SkyBox E-Motion #9 Ken Griffey Jr.",
		"Panini PRIZM!!! Silver   Wave",
		"weird ### title /// 12/99",
		"カード non ascii title",
	}
	for _, title := range titles {
		once := Title(title)
		assert.Equal(t, once, Title(once), "title %q", title)
	}
}

func TestTitle_Rewrites(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1995 SkyBox E-Motion #9", "1995 skybox emotion #9"},
		{"1995 E Motion Griffey", "1995 emotion griffey"},
		{"Topps Chromium #100", "topps chrome #100"},
		{"2020 Prism Silver", "2020 prizm silver"},
		{"Ken Griffey Jr. Rookie", "ken griffey jr rookie"},
		{"Gold Parallel #12/99", "gold parallel 12/99"},
		{"Gold Parallel 12 / 99", "gold parallel 12/99"},
		{"Mike Trout #50", "mike trout #50"},
		{"  lots   of---punctuation!!  ", "lots of punctuation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Title(tt.in), "input %q", tt.in)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"2021", "topps", "chrome", "#50"}, Tokens("2021 Topps Chrome #50"))
	assert.Nil(t, Tokens("   "))
}

func TestPhrase_DropsCardNumberMarker(t *testing.T) {
	assert.Equal(t, "topps chrome 150", Phrase("Topps Chrome #150"))
}
