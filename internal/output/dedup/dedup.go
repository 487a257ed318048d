package dedup

import (
	"fmt"
	"time"

	"github.com/crimson-sun/kartavya/internal/model"
)

// Config controls deduplication behavior.
type Config struct {
	Window time.Duration // grouping window
}

// Deduplicator collapses repeated events about the same report within a
// time window, so a burst of upvotes becomes one notification.
type Deduplicator struct {
	cfg Config
}

// New creates a Deduplicator with the given config.
func New(cfg Config) *Deduplicator {
	return &Deduplicator{cfg: cfg}
}

// group accumulates events with the same dedup key.
type group struct {
	event    model.Event
	count    int
	firstTS  time.Time
	latestTS time.Time
}

// key identifies events that say the same thing about the same report.
func key(e model.Event) string {
	return string(e.Kind) + "|" + e.ReportID + "|" + string(e.Status)
}

// DeduplicateBatch collapses events with identical kind, report and status
// within Window of the first one. Returns events in first-occurrence order.
// Merged events keep the first timestamp and gain a Count and a note on
// the repeat in Message.
func (d *Deduplicator) DeduplicateBatch(events []model.Event) []model.Event {
	if len(events) == 0 {
		return nil
	}

	var order []*group
	groups := make(map[string]*group)

	for _, e := range events {
		k := key(e)
		if g, ok := groups[k]; ok && e.Timestamp.Sub(g.firstTS) <= d.cfg.Window {
			g.count++
			if e.Timestamp.After(g.latestTS) {
				g.latestTS = e.Timestamp
			}
			continue
		}

		// New key, or outside the window of the current group.
		g := &group{
			event:    e,
			count:    1,
			firstTS:  e.Timestamp,
			latestTS: e.Timestamp,
		}
		groups[k] = g
		order = append(order, g)
	}

	result := make([]model.Event, 0, len(order))
	for _, g := range order {
		e := g.event
		if g.count > 1 {
			e.Count = g.count
			e.Message = fmt.Sprintf("%s (x%d in %s)", e.Message, e.Count, formatDuration(g.latestTS.Sub(g.firstTS)))
		}
		result = append(result, e)
	}
	return result
}

// formatDuration produces a human-readable short duration string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
