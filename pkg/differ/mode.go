package differ

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentstation/omnisync/pkg/errors"
)

// Mode selects which parts of a changeset are applied.
type Mode string

const (
	// ModeAll creates missing users, updates profiles, memberships and attributes.
	ModeAll Mode = "all"
	// ModeGroups only syncs group memberships of existing users.
	ModeGroups Mode = "groups"
	// ModeAttributes only syncs custom attributes of existing users.
	ModeAttributes Mode = "attributes"
)

// String returns the string representation of a mode.
func (m Mode) String() string {
	return string(m)
}

// Modes returns all modes.
func Modes() []Mode {
	return []Mode{ModeAll, ModeGroups, ModeAttributes}
}

// ParseMode parses a mode name. An empty name is ModeAll.
func ParseMode(s string) (Mode, error) {
	if strings.TrimSpace(s) == "" {
		return ModeAll, nil
	}
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Modes(), m) {
		return m, nil
	}
	return "", &errors.ValidationError{
		Field:   "mode",
		Value:   s,
		Message: fmt.Sprintf("must be one of %v", Modes()),
	}
}

// Groups reports whether the mode applies membership changes.
func (m Mode) Groups() bool {
	return m == ModeAll || m == ModeGroups
}

// Attributes reports whether the mode applies attribute changes.
func (m Mode) Attributes() bool {
	return m == ModeAll || m == ModeAttributes
}

// Users reports whether the mode creates and updates users.
func (m Mode) Users() bool {
	return m == ModeAll
}
