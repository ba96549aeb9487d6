package server

//go:generate templ generate -f status_page.templ

import (
	"fmt"
	"time"

	"github.com/conneroisu/sitepipe/internal/watch"
)

// StatusSource provides the per-binding results shown on the status board.
type StatusSource interface {
	Results() []watch.Result
}

func clientSummary(clients int) string {
	if clients == 1 {
		return "1 live-reload client connected"
	}
	return fmt.Sprintf("%d live-reload clients connected", clients)
}

func startedAt(r watch.Result) string {
	return r.Started.Format(time.TimeOnly)
}

func elapsed(r watch.Result) string {
	return r.Duration.Round(time.Millisecond).String()
}
