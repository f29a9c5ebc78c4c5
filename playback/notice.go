package playback

import (
	"video-chapters/toc"
)

type NoticeKind int

const (
	NoticeChapterChanged NoticeKind = iota
	NoticeAlreadyCompleted
	NoticeCountdown
	NoticeDeadlinePassed
	NoticeCheckFailed
	NoticeSeekRefused
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeChapterChanged:
		return "chapter_changed"
	case NoticeAlreadyCompleted:
		return "already_completed"
	case NoticeCountdown:
		return "countdown"
	case NoticeDeadlinePassed:
		return "deadline_passed"
	case NoticeCheckFailed:
		return "check_failed"
	case NoticeSeekRefused:
		return "seek_refused"
	}
	return "unknown"
}

// Notice is a message for the viewer.
type Notice struct {
	Kind    NoticeKind
	Message string
	// Chapter is set on chapter changes; nil when the playhead left every chapter.
	Chapter *toc.Entry
	Score   *int
	Total   *int
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
