package service

import "testing"

func TestExtractTitle(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		want string
	}{
		{"atx heading", "a.md", "# Hello World\nbody", "Hello World"},
		{"heading after text", "a.md", "intro paragraph\n\n## Second\nmore", "Second"},
		{"setext heading", "a.md", "Hello\n=====\nbody", "Hello"},
		{"no heading falls back to file name", "notes/2024/todo.md", "just text", "todo"},
		{"empty body falls back to file name", "readme.markdown", "", "readme"},
		{"whitespace heading falls back", "a.md", "#   \nbody", "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractTitle(tc.path, []byte(tc.body))
			if got != tc.want {
				t.Fatalf("extractTitle(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}
