package logger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	ansiReset   = "\033[0m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
	ansiDim     = "\033[2m"

	clockLayout = "15:04:05.000"
)

// levelTags is ordered from most to least severe.
var levelTags = []struct {
	min   slog.Level
	tag   string
	color string
}{
	{slog.LevelError, "ERR", ansiRed},
	{slog.LevelWarn, "WRN", ansiYellow},
	{slog.LevelInfo, "INF", ansiGreen},
}

func levelTag(l slog.Level) (tag, color string) {
	for _, t := range levelTags {
		if l >= t.min {
			return t.tag, t.color
		}
	}
	return "DBG", ansiMagenta
}

// consoleHandler writes one line per record:
//
//	12:04:05.123 INF Fired command="make test" count=3 (session.go:88)
//
// Groups are flattened into dotted keys.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	source bool
	color  bool
	preset []byte
	group  string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, source: source, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	if !r.Time.IsZero() {
		buf = h.paint(buf, ansiDim, r.Time.Format(clockLayout))
		buf = append(buf, ' ')
	}
	tag, color := levelTag(r.Level)
	buf = h.paint(buf, color, tag)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	buf = append(buf, h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.group, a)
		return true
	})
	if src := r.Source(); h.source && src != nil {
		buf = append(buf, ' ')
		buf = h.paint(buf, ansiDim, "("+filepath.Base(src.File)+":"+strconv.Itoa(src.Line)+")")
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = slices.Clip(h.preset)
	for _, a := range attrs {
		next.preset = next.appendAttr(next.preset, h.group, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = dotted(h.group, name)
	return &next
}

func (h *consoleHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = dotted(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, prefix, ga)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = h.paint(buf, ansiCyan, dotted(prefix, a.Key)+"=")
	return append(buf, renderValue(a.Value)...)
}

func (h *consoleHandler) paint(buf []byte, color, s string) []byte {
	if !h.color {
		return append(buf, s...)
	}
	buf = append(buf, color...)
	buf = append(buf, s...)
	return append(buf, ansiReset...)
}

func dotted(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// renderValue quotes strings that would not survive a key=value split.
func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsFunc(s, needsQuote) {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.String()
	}
}

func needsQuote(r rune) bool {
	return r == '"' || r == '=' || unicode.IsSpace(r) || !unicode.IsPrint(r)
}
