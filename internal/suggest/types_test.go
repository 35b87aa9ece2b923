package suggest

import "testing"

func TestStatus_AcceptsAborts(t *testing.T) {
	cases := []struct {
		name  string
		types []string
		want  bool
	}{
		{"omitted list accepts by default", nil, true},
		{"empty list accepts by default", []string{}, true},
		{"abort present among others", []string{"buy", "abort"}, true},
		{"abort absent excludes", []string{"buy", "sell"}, false},
	}
	for _, c := range cases {
		s := Status{RequestedSuggestionTypes: c.types}
		if got := s.acceptsAborts(); got != c.want {
			t.Errorf("%s: acceptsAborts() = %v, want %v", c.name, got, c.want)
		}
	}
}
