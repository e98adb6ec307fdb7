package routingtable

import (
	"strings"

	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

const (
	levelSeparator = "/"
	singleLevel    = "+"
	multiLevel     = "#"
)

// Matches reports whether a destination name matches a topic filter.
//
// Both strings are split into levels on "/". Levels are compared in
// lockstep: "+" matches any level, a level containing "#" matches the rest
// of the name, and any other level must be equal. When the name runs out of
// levels first the walk stops without failing. If the last filter level
// compared was "+", the level counts must agree.
//
// A name starting with "$" only matches a filter that also starts with "$".
// An empty filter or name never matches.
func Matches(filter, name string) bool {
	if filter == "" || name == "" {
		return false
	}
	if !strings.HasPrefix(filter, "$") && strings.HasPrefix(name, "$") {
		return false
	}

	nameLevels := splitLevels(name)
	filterLevels := splitLevels(filter)
	found := true
	lastLevel := ""

	for x, level := range filterLevels {
		if x == len(nameLevels) {
			break
		}
		lastLevel = level
		if level == singleLevel {
			continue
		}
		if strings.Contains(level, multiLevel) {
			break
		}
		if level != nameLevels[x] {
			found = false
			break
		}
	}

	if lastLevel == singleLevel && len(nameLevels) != len(filterLevels) {
		found = false
	}
	return found
}

// MatchesContext applies a subscription's filter to a destination name.
// Filters without wildcards must equal the name exactly.
func MatchesContext(ctx routingtable.SubscriptionContext, name string) bool {
	if ctx.ContainsWildcard() {
		return Matches(ctx.Filter, name)
	}
	return ctx.Filter != "" && ctx.Filter == name
}

// splitLevels splits on "/" and drops trailing empty levels, so "a/b/"
// has two levels and "/" has none.
func splitLevels(s string) []string {
	levels := strings.Split(s, levelSeparator)
	n := len(levels)
	for n > 0 && levels[n-1] == "" {
		n--
	}
	return levels[:n]
}
