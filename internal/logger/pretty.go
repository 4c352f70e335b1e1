package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[90m"
	ansiKey   = "\033[36m"
)

var levelStyles = []struct {
	min   slog.Level
	color string
	label string
}{
	{slog.LevelError, "\033[31m", "ERROR"},
	{slog.LevelWarn, "\033[33m", "WARN "},
	{slog.LevelInfo, "\033[34m", "INFO "},
	{slog.LevelDebug, ansiDim, "DEBUG"},
}

// PrettyHandler writes one line per record for terminals:
//
//	[2006-01-02 15:04:05] INFO  projected op=context_projection rows=4 width=2
//
// Float values are printed in shortest form, durations are rounded to the
// microsecond and int slices such as sequence boundaries print as [0,3,4].
type PrettyHandler struct {
	level  slog.Leveler
	w      io.Writer
	mu     *sync.Mutex
	prefix string
	attrs  []byte
	color  bool
}

// NewPrettyHandler returns a colored handler.  Only opts.Level is used.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{level: level, w: w, mu: new(sync.Mutex), color: true}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128+len(h.attrs))

	buf = h.style(buf, ansiDim)
	buf = append(buf, '[')
	buf = r.Time.AppendFormat(buf, time.DateTime)
	buf = append(buf, ']')
	buf = h.style(buf, ansiReset)
	buf = append(buf, ' ')

	color, label := styleFor(r.Level)
	buf = h.style(buf, color+ansiBold)
	buf = append(buf, label...)
	buf = h.style(buf, ansiReset)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	buf = append(buf, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs renders attrs once so later records only copy the bytes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.attrs = append([]byte(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = h.appendAttr(c.attrs, h.prefix, a)
	}
	return &c
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func (h *PrettyHandler) style(buf []byte, code string) []byte {
	if h.color {
		buf = append(buf, code...)
	}
	return buf
}

func styleFor(level slog.Level) (string, string) {
	for _, s := range levelStyles {
		if level >= s.min {
			return s.color, s.label
		}
	}
	last := levelStyles[len(levelStyles)-1]
	return last.color, last.label
}

// appendAttr writes " key=value".  Groups flatten into dotted keys.
func (h *PrettyHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, prefix, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = h.style(buf, ansiKey)
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = h.style(buf, ansiReset)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendText(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().Round(time.Microsecond).String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}

	switch x := v.Any().(type) {
	case []int:
		buf = append(buf, '[')
		for i, n := range x {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendInt(buf, int64(n), 10)
		}
		return append(buf, ']')
	case error:
		return appendText(buf, x.Error())
	default:
		return appendText(buf, fmt.Sprint(x))
	}
}

func appendText(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, " \t\n\"=")
}
