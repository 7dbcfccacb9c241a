package config

import "testing"

func TestUsedClampsAndRounds(t *testing.T) {
	cases := []struct {
		name  string
		delay int
		want  int
	}{
		{"zero selects pass-through", 0, 0},
		{"negative clamps to zero", -50, 0},
		{"small positive raised to 8", 5, 8},
		{"300ms rounds per native period", 300, 114}, // round(300/2.625) = 114
		{"above max clamps to 4000ms", 5000, int(4000/2.625 + 0.5)},
	}

	for _, c := range cases {
		cfg := &Config{BufferMilliseconds: c.delay}
		if got := cfg.Used(); got != c.want {
			t.Errorf("%s: Used() = %d, want %d", c.name, got, c.want)
		}
	}
}
