package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

func consoleTime(ts time.Time) string {
	return ts.Local().Format(consoleTimeLayout)
}

// plainValue renders v without quoting; used for the subject prefix.
func plainValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return consoleTime(v.Time())
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// fieldValue renders v for key=value output, quoting empty values and values
// that would break the pair apart.
func fieldValue(v slog.Value) string {
	s := plainValue(v)
	if s == "" || strings.ContainsFunc(s, breaksPair) {
		return strconv.Quote(s)
	}
	return s
}

func breaksPair(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
