// Package featureflags evaluates runtime feature toggles such as "notification_inbox=on,new_feed=25%".
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// NotificationInbox gates the persisted notification inbox.
const NotificationInbox = "notification_inbox"

// rule is a parsed flag value. percent is 100 for "on" and 0 for "off".
type rule struct {
	percent int
	raw     string
}

// Manager holds parsed flags. A nil Manager reports every flag as disabled.
type Manager struct {
	rules map[string]rule
}

// NewManager parses a comma-separated list of name=value pairs. Values are
// on/true/1, off/false/0 or N% for a deterministic per-user rollout.
// Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" {
			continue
		}
		if pct, ok := parsePercent(value); ok {
			m.rules[name] = rule{percent: pct, raw: value}
		}
	}
	return m
}

func parsePercent(value string) (int, bool) {
	switch value {
	case "on", "true", "1":
		return 100, true
	case "off", "false", "0":
		return 0, true
	}
	if !strings.HasSuffix(value, "%") {
		return 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return 0, false
	}
	return min(max(pct, 0), 100), true
}

// Enabled reports whether name is on for userID. Partial rollouts never
// include the anonymous user (id 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	switch {
	case !ok || r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}

// Raw returns every configured flag with its value as written.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}
