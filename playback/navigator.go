package playback

import (
	"video-chapters/toc"
)

// Marker places a chapter on the seek bar. Offset is the chapter start as a
// fraction of the video duration.
type Marker struct {
	Chapter toc.Entry
	Offset  float64
}

// Navigator tracks which chapter contains the playhead.
type Navigator struct {
	byStart []toc.Entry
	byOrder []toc.Entry
	active  int64
}

func NewNavigator(chapters []toc.Entry) *Navigator {
	byStart := append([]toc.Entry(nil), chapters...)
	toc.SortByStart(byStart)
	byOrder := append([]toc.Entry(nil), chapters...)
	toc.SortByOrder(byOrder)
	return &Navigator{byStart: byStart, byOrder: byOrder}
}

// Chapters returns the chapters in presentation order.
func (n *Navigator) Chapters() []toc.Entry {
	return append([]toc.Entry(nil), n.byOrder...)
}

func (n *Navigator) Chapter(id int64) (toc.Entry, bool) {
	for _, e := range n.byOrder {
		if e.ID == id {
			return e, true
		}
	}
	return toc.Entry{}, false
}

// Active returns the chapter whose range contains t.
func (n *Navigator) Active(t float64) (toc.Entry, bool) {
	for _, e := range n.byStart {
		if e.Contains(t) {
			return e, true
		}
		if float64(e.Start) > t {
			break
		}
	}
	return toc.Entry{}, false
}

// Update moves the playhead to t and reports whether the active chapter
// changed. ok is false when t lies outside every chapter.
func (n *Navigator) Update(t float64) (active toc.Entry, ok, changed bool) {
	active, ok = n.Active(t)
	id := int64(0)
	if ok {
		id = active.ID
	}
	changed = id != n.active
	n.active = id
	return active, ok, changed
}

func (n *Navigator) Markers(duration float64) []Marker {
	if duration <= 0 {
		return nil
	}
	out := make([]Marker, 0, len(n.byOrder))
	for _, e := range n.byOrder {
		offset := float64(e.Start) / duration
		if offset > 1 {
			offset = 1
		}
		out = append(out, Marker{Chapter: e, Offset: offset})
	}
	return out
}
