package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// AvailabilityWindow is a requested or offered availability bucket.
type AvailabilityWindow string

const (
	WindowNow      AvailabilityWindow = "now"
	WindowToday    AvailabilityWindow = "today"
	WindowThisWeek AvailabilityWindow = "this_week"
	WindowFlexible AvailabilityWindow = "flexible"
)

// Valid reports whether w is one a requester may ask for.
func (w AvailabilityWindow) Valid() bool {
	switch w {
	case WindowNow, WindowToday, WindowThisWeek:
		return true
	}
	return false
}

func (w AvailabilityWindow) rank() int {
	switch w {
	case WindowNow:
		return 0
	case WindowToday:
		return 1
	case WindowThisWeek:
		return 2
	default:
		return 3
	}
}

// Covers reports whether a candidate offering offered satisfies a request for
// w. Sooner availability satisfies a later window: "now" covers "today".
func (w AvailabilityWindow) Covers(offered AvailabilityWindow) bool {
	if !w.Valid() {
		return false
	}
	return offered.rank() <= w.rank()
}

func parseAvailability(desc string) AvailabilityWindow {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "now"), strings.Contains(d, "immediate"), strings.Contains(d, "instant"):
		return WindowNow
	case strings.Contains(d, "today"), strings.Contains(d, "tonight"):
		return WindowToday
	case strings.Contains(d, "week"), strings.Contains(d, "tomorrow"):
		return WindowThisWeek
	default:
		return WindowFlexible
	}
}

type responseScale int

const (
	scaleUnknown responseScale = iota
	scaleInstant
	scaleMinutes
	scaleHours
)

// responseTime is a parsed response-time descriptor. minutes is only
// meaningful when known is true.
type responseTime struct {
	scale   responseScale
	minutes int
	known   bool
}

// responseRe matches "<n> min", "<n> minutes", "<n> hour", "<n>hrs", ...
var responseRe = regexp.MustCompile(`(\d+)\s*(minutes|minute|mins|min|hours|hour|hrs|hr)\b`)

// knownResponseMinutes are the descriptor values with a defined meaning.
// Other numbers keep their scale but fall back to defaults.
var knownResponseMinutes = map[string]map[int]int{
	"min":  {5: 5, 15: 15, 30: 30},
	"hour": {1: 60, 2: 120},
}

func parseResponseTime(desc string) responseTime {
	d := strings.ToLower(strings.TrimSpace(desc))
	if d == "" {
		return responseTime{}
	}
	if strings.Contains(d, "instant") || strings.Contains(d, "immediate") {
		return responseTime{scale: scaleInstant, minutes: 0, known: true}
	}

	m := responseRe.FindStringSubmatch(d)
	if m == nil {
		switch {
		case strings.Contains(d, "minute"):
			return responseTime{scale: scaleMinutes}
		case strings.Contains(d, "hour"):
			return responseTime{scale: scaleHours}
		}
		return responseTime{}
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return responseTime{}
	}
	unit := "min"
	scale := scaleMinutes
	if strings.HasPrefix(m[2], "h") {
		unit = "hour"
		scale = scaleHours
	}
	minutes, ok := knownResponseMinutes[unit][n]
	return responseTime{scale: scale, minutes: minutes, known: ok}
}
