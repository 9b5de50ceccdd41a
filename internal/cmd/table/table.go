// Package table converts Omni resources into rows for tabular CLI output.
package table

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/omnisync/internal/cmd/emoji"
	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/scim"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// UsersToTableData converts users to table format.
func UsersToTableData(users []scim.User, wide bool) Data {
	headers := []string{"ID", "User Name", "Display Name", "Email", "Active"}
	if wide {
		headers = append(headers, "Groups", "Attributes", "Modified")
	}

	rows := make([][]string, 0, len(users))
	for i := range users {
		u := &users[i]
		row := []string{
			u.ID,
			u.UserName,
			orDash(u.DisplayName),
			orDash(u.PrimaryEmail()),
			FormatActive(u.IsActive()),
		}
		if wide {
			row = append(row,
				orDash(groupNames(u.Groups)),
				strconv.Itoa(len(u.Attributes)),
				FormatTime(lastModified(u.Meta)),
			)
		}
		rows = append(rows, row)
	}

	align := []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignCenter}
	if wide {
		align = append(align, AlignLeft, AlignRight, AlignLeft)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// GroupsToTableData converts groups to table format.
func GroupsToTableData(groups []scim.Group, wide bool) Data {
	headers := []string{"ID", "Display Name", "Members"}
	if wide {
		headers = append(headers, "Created", "Modified")
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		row := []string{g.ID, g.DisplayName, strconv.Itoa(len(g.Members))}
		if wide {
			row = append(row, FormatTime(created(g.Meta)), FormatTime(lastModified(g.Meta)))
		}
		rows = append(rows, row)
	}

	align := []Align{AlignLeft, AlignLeft, AlignRight}
	if wide {
		align = append(align, AlignLeft, AlignLeft)
	}
	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// MembersToTableData converts group member references to table format.
func MembersToTableData(members []scim.Reference) Data {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{m.Value, orDash(m.Display)})
	}
	return Data{Headers: []string{"User ID", "Display"}, Rows: rows}
}

// AttributesToTableData converts a user's attributes to key/value rows sorted by key.
func AttributesToTableData(attrs scim.Attributes) Data {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, FormatValue(attrs[k])})
	}
	return Data{Headers: []string{"Attribute", "Value"}, Rows: rows}
}

// HistoryToTableData converts a resource history to table format.
func HistoryToTableData(h *omni.History) Data {
	rows := make([][]string, 0, len(h.Events))
	for _, e := range h.Events {
		rows = append(rows, []string{FormatTime(&e.Time), e.Event, h.Name, orDash(h.Version)})
	}
	return Data{Headers: []string{"Time", "Event", "Name", "Version"}, Rows: rows}
}

// BulkToTableData converts a bulk response to table format.
func BulkToTableData(resp *scim.BulkResponse) Data {
	rows := make([][]string, 0, len(resp.Operations))
	for _, op := range resp.Operations {
		result := emoji.Success
		if !op.Succeeded() {
			result = emoji.Error
		}
		rows = append(rows, []string{result, op.Method, op.BulkID, op.Status, orDash(op.Location)})
	}
	return Data{
		Headers:         []string{"", "Method", "Bulk ID", "Status", "Location"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignCenter, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
}

// FormatActive renders the active flag.
func FormatActive(active bool) string {
	if active {
		return emoji.Success
	}
	return emoji.Error
}

// FormatTime renders a timestamp for humans, or "-" when unknown.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(constants.TimeFormatHuman)
}

// FormatValue renders an attribute value. Strings print bare, everything
// else as compact JSON.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(data)
}

func groupNames(refs []scim.Reference) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Display != "" {
			names = append(names, r.Display)
		} else {
			names = append(names, r.Value)
		}
	}
	return strings.Join(names, ", ")
}

func created(m *scim.Meta) *time.Time {
	if m == nil {
		return nil
	}
	return m.Created
}

func lastModified(m *scim.Meta) *time.Time {
	if m == nil {
		return nil
	}
	return m.LastModified
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
