package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestObjectPath_KeepsExtensionUnderTopic(t *testing.T) {
	p := ObjectPath(42, "Lecture One.MP4")
	if !strings.HasPrefix(p, "topics/42/") || !strings.HasSuffix(p, ".mp4") {
		t.Fatalf("unexpected path %q", p)
	}
	if ObjectPath(42, "a.mp4") == ObjectPath(42, "a.mp4") {
		t.Fatalf("expected unique paths")
	}
	if err := ValidatePath(p); err != nil {
		t.Fatalf("generated path rejected: %v", err)
	}
}

func TestValidatePath(t *testing.T) {
	for _, bad := range []string{"", "/topics/1/a.mp4", "../etc/passwd", "topics/../x", "videos/a.mp4", "topics//a.mp4"} {
		if err := ValidatePath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%q: expected invalid path, got %v", bad, err)
		}
	}
}

func TestContentType(t *testing.T) {
	if ContentType("x.webm") != "video/webm" || ContentType("x.bin") != "application/octet-stream" {
		t.Fatalf("unexpected content types")
	}
}
