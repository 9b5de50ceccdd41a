package output

import (
	"io"

	"github.com/agentstation/omnisync/internal/cmd/table"
	"github.com/agentstation/omnisync/pkg/omni"
	"github.com/agentstation/omnisync/pkg/scim"
)

// Users writes users as a table, or as the raw SCIM resources for json/yaml.
func Users(w io.Writer, users []scim.User, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.UsersToTableData(users, format == FormatWide))
	}
	return NewFormatter(format).Format(w, users)
}

// Groups writes groups as a table, or as the raw SCIM resources for json/yaml.
func Groups(w io.Writer, groups []scim.Group, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.GroupsToTableData(groups, format == FormatWide))
	}
	return NewFormatter(format).Format(w, groups)
}

// Members writes group member references.
func Members(w io.Writer, members []scim.Reference, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.MembersToTableData(members))
	}
	return NewFormatter(format).Format(w, members)
}

// Attributes writes a user's custom attributes.
func Attributes(w io.Writer, attrs scim.Attributes, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.AttributesToTableData(attrs))
	}
	return NewFormatter(format).Format(w, attrs)
}

// History writes a resource history.
func History(w io.Writer, h *omni.History, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.HistoryToTableData(h))
	}
	return NewFormatter(format).Format(w, h)
}

// Bulk writes the per-operation results of a bulk request.
func Bulk(w io.Writer, resp *scim.BulkResponse, format Format) error {
	if format.IsTable() {
		return NewFormatter(format).Format(w, table.BulkToTableData(resp))
	}
	return NewFormatter(format).Format(w, resp)
}

// Any writes arbitrary data in the given format.
func Any(w io.Writer, data any, format Format) error {
	return NewFormatter(format).Format(w, data)
}
