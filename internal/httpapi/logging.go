package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// requestLogLevel honours a ?log= query or X-Log-Level header before the
// server default.
func requestLogLevel(r *http.Request, def LogLevel) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return def
}

// requestLog carries the logger and level for one request.
type requestLog struct {
	zl    *zerolog.Logger
	lvl   LogLevel
	rid   string
	start time.Time
}

func newRequestLog(zl *zerolog.Logger, r *http.Request, def LogLevel) requestLog {
	return requestLog{
		zl:    zl,
		lvl:   requestLogLevel(r, def),
		rid:   middleware.GetReqID(r.Context()),
		start: time.Now(),
	}
}

func (l requestLog) event(ev *zerolog.Event) *zerolog.Event {
	if l.rid != "" {
		ev = ev.Str("request_id", l.rid)
	}
	return ev
}

// debug logs at debug level when the request asked for it.
func (l requestLog) debug(msg string, fields map[string]any) {
	if l.lvl < LevelDebug {
		return
	}
	l.event(l.zl.Debug()).Fields(fields).Msg(msg)
}

// end logs the outcome. Failures are logged from LevelError up, successes
// from LevelInfo up.
func (l requestLog) end(msg string, status int, err error) {
	if l.lvl == LevelOff || (err == nil && l.lvl < LevelInfo) {
		return
	}
	ev := l.zl.Info()
	if err != nil {
		ev = l.zl.Error().Err(err)
	}
	l.event(ev).Int("status", status).Dur("dur", time.Since(l.start)).Msg(msg)
}
