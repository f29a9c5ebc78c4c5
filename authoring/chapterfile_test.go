package authoring_test

import (
	"strings"
	"testing"
	"video-chapters/authoring"
	"video-chapters/toc"
)

func TestLoadChapters(t *testing.T) {
	doc := `
chapters:
  - name: Intro
    start: 0
    end: "0:30"
  - name: " Body "
    description: main part
    start: "0:30"
    end: "1:02:05"
`
	got, err := authoring.LoadChapters(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []toc.Staged{
		{Name: "Intro", Start: 0, End: 30},
		{Name: "Body", Description: "main part", Start: 30, End: 3725},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chapter %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadChapters_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"bad timestamp": "chapters:\n  - name: A\n    start: 1:75\n    end: 3\n",
		"negative":      "chapters:\n  - name: A\n    start: -4\n    end: 3\n",
		"unknown field": "chapters:\n  - name: A\n    begin: 4\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := authoring.LoadChapters(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	got, err := authoring.LoadChapters(strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty file: %v %v", got, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]int{"45": 45, "1:30": 90, "01:00:00": 3600, " 7 ": 7}
	for in, want := range cases {
		got, err := authoring.ParseTimestamp(in)
		if err != nil || got != want {
			t.Fatalf("ParseTimestamp(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
}

func TestParseTimestamp_Rejects(t *testing.T) {
	for _, in := range []string{"+5", "-5", "1:+5", "9223372036854775807:00", "99999999999999999:00:00", "596524:00:00", "1::2", "1:2:3:4", "0x10"} {
		if got, err := authoring.ParseTimestamp(in); err == nil {
			t.Fatalf("ParseTimestamp(%q) = %d, want error", in, got)
		}
	}
	if got, err := authoring.ParseTimestamp("596523:14:07"); err != nil || got != 2147483647 {
		t.Fatalf("largest timestamp: %d %v", got, err)
	}
}
