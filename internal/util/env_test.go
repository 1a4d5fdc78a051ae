package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{" true ", false, true},
	}
	for _, c := range cases {
		t.Setenv("VIVIBOT_TEST_TOGGLE", c.value)
		if got := ParseBoolEnv("VIVIBOT_TEST_TOGGLE", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}
