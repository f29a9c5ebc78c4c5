package authoring

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
	"math"
	"strconv"
	"strings"
	"video-chapters/toc"
)

// ChapterFile is the YAML document the author command reads.
//
//	chapters:
//	  - name: Intro
//	    start: "0:10"
//	    end: 40
type ChapterFile struct {
	Chapters []ChapterSpec `yaml:"chapters"`
}

type ChapterSpec struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Start       Timestamp `yaml:"start"`
	End         Timestamp `yaml:"end"`
}

// Timestamp is a whole number of seconds, written either as an integer or as
// m:ss / h:mm:ss.
type Timestamp int

func (t *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseTimestamp(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = Timestamp(v)
	return nil
}

// ParseTimestamp accepts unsigned digits separated by colons. Minutes and
// seconds after the first field stay below 60 and the total fits in an int32.
func ParseTimestamp(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	total := 0
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + n
		if total > math.MaxInt32 {
			return 0, fmt.Errorf("timestamp %q out of range", s)
		}
	}
	return total, nil
}

// LoadChapters reads a chapter file into staged entries, in file order.
func LoadChapters(r io.Reader) ([]toc.Staged, error) {
	var f ChapterFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode chapters: %w", err)
	}
	out := make([]toc.Staged, 0, len(f.Chapters))
	for _, c := range f.Chapters {
		out = append(out, toc.Staged{
			Name:        strings.TrimSpace(c.Name),
			Description: c.Description,
			Start:       int(c.Start),
			End:         int(c.End),
		})
	}
	return out, nil
}
