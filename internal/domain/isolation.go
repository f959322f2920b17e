package domain

import (
	"fmt"
	"strings"
)

// IsolationLevel is the SQL transaction isolation level a transaction runs at.
// Levels are ordered from loosest to strictest.
type IsolationLevel uint8

// Supported isolation levels.
const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// AllIsolationLevels lists every level, loosest first.
var AllIsolationLevels = []IsolationLevel{
	ReadUncommitted,
	ReadCommitted,
	RepeatableRead,
	Serializable,
}

var isolationNames = map[IsolationLevel]string{
	ReadUncommitted: "READ UNCOMMITTED",
	ReadCommitted:   "READ COMMITTED",
	RepeatableRead:  "REPEATABLE READ",
	Serializable:    "SERIALIZABLE",
}

// String returns the SQL spelling of the level, e.g. "READ COMMITTED".
func (l IsolationLevel) String() string {
	if name, ok := isolationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("IsolationLevel(%d)", uint8(l))
}

// Slug returns the kebab-case name used on the command line and in JSON,
// e.g. "read-committed".
func (l IsolationLevel) Slug() string {
	return strings.ReplaceAll(strings.ToLower(l.String()), " ", "-")
}

// Valid reports whether l is one of the four supported levels.
func (l IsolationLevel) Valid() bool {
	_, ok := isolationNames[l]
	return ok
}

// ParseIsolationLevel accepts "read-committed", "read_committed", "READ COMMITTED"
// and the short forms "ru", "rc", "rr" and "s".
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	switch normalized {
	case "read uncommitted", "ru":
		return ReadUncommitted, nil
	case "read committed", "rc":
		return ReadCommitted, nil
	case "repeatable read", "rr":
		return RepeatableRead, nil
	case "serializable", "s":
		return Serializable, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIsolationLevel, s)
}

// MarshalText encodes the level as its slug.
func (l IsolationLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIsolationLevel, uint8(l))
	}
	return []byte(l.Slug()), nil
}

// UnmarshalText decodes any spelling accepted by ParseIsolationLevel.
func (l *IsolationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseIsolationLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
