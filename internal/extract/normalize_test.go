package extract

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n \r\n", ""},
		{"collapses spaces", "This   is    a\n\n\ntest    text\twith\nexcessive\n\n   whitespace.", "This is a\n\ntest text with\n\nexcessive\n\nwhitespace."},
		{"drops control characters", "a\x00b\x07c", "abc"},
		{"control between spaces", "a \x00 b", "a b"},
		{"crlf", "line one\r\nline two", "line one\n\nline two"},
		{"unicode spaces", "a\u00a0\u2003b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"  lead and trail  ",
		"para one\n\n\n\npara two\n",
		"tabs\t\tand\x0bvertical\x0cfeeds",
		"mixed \x00\x01 control   separators\u0085end",
		"\n\n\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func FuzzNormalize(f *testing.F) {
	f.Add("Hello   world.\n\nNext\tline.")
	f.Add("\x00\r\n  x")
	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if Normalize(once) != once {
			t.Fatalf("Normalize not idempotent for %q", s)
		}
	})
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
}
