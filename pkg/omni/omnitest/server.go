// Package omnitest provides an in-memory Omni SCIM server for tests.
package omnitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/scim"
)

// APIKey is the bearer token the server accepts.
const APIKey = "test-api-key"

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Write reports whether the request modifies state.
func (r Request) Write() bool {
	return r.Method != http.MethodGet
}

type failure struct {
	method string
	prefix string
	status int
	detail string
}

// Server is a fake Omni instance backed by maps.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]*scim.User
	groups   map[string]*scim.Group
	nextID   int
	requests []Request
	failures []failure
	now      time.Time
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		users:  map[string]*scim.User{},
		groups: map[string]*scim.Group{},
		now:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddUser stores a user, assigning an id when it has none.
func (s *Server) AddUser(u scim.User) scim.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.newID("u")
	}
	u.Attributes = u.Attributes.Clone()
	u.Groups = nil
	u.Meta = s.meta("User")
	s.users[u.ID] = &u
	return u
}

// AddGroup stores a group, assigning an id when it has none.
func (s *Server) AddGroup(g scim.Group) scim.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = s.newID("g")
	}
	g.Members = append([]scim.Reference(nil), g.Members...)
	g.Meta = s.meta("Group")
	s.groups[g.ID] = &g
	return g
}

// User returns a copy of the stored user.
func (s *Server) User(id string) (scim.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return scim.User{}, false
	}
	return s.withGroups(*u), true
}

// UserByName returns a copy of the stored user with the given userName.
func (s *Server) UserByName(userName string) (scim.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.UserName, userName) {
			return s.withGroups(*u), true
		}
	}
	return scim.User{}, false
}

// Group returns a copy of the stored group.
func (s *Server) Group(id string) (scim.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return scim.Group{}, false
	}
	out := *g
	out.Members = append([]scim.Reference(nil), g.Members...)
	return out, true
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Writes returns the state-changing requests received so far.
func (s *Server) Writes() []Request {
	var writes []Request
	for _, r := range s.Requests() {
		if r.Write() {
			writes = append(writes, r)
		}
	}
	return writes
}

// Fail makes every request matching method and path prefix (relative to the
// SCIM root, e.g. "/Groups/g-1") answer with the given status and detail.
func (s *Server) Fail(method, pathPrefix string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, prefix: pathPrefix, status: status, detail: detail})
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return prefix + "-" + strconv.Itoa(s.nextID)
}

func (s *Server) meta(resourceType string) *scim.Meta {
	created := s.now
	return &scim.Meta{ResourceType: resourceType, Created: &created, LastModified: &created, Version: `W/"1"`}
}

func (s *Server) touch(m *scim.Meta) {
	if m == nil {
		return
	}
	modified := s.now.Add(time.Hour)
	m.LastModified = &modified
	m.Version = `W/"2"`
}

func (s *Server) withGroups(u scim.User) scim.User {
	u.Groups = nil
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if g := s.groups[id]; g.HasMember(u.ID) {
			u.Groups = append(u.Groups, scim.Reference{Value: g.ID, Display: g.DisplayName})
		}
	}
	u.Attributes = u.Attributes.Clone()
	return u
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)

	path := strings.TrimPrefix(r.URL.Path, constants.SCIMBasePath)
	s.requests = append(s.requests, Request{Method: r.Method, Path: path, Query: r.URL.RawQuery, Body: body})

	if r.Header.Get("Authorization") != "Bearer "+APIKey {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}
	for _, f := range s.failures {
		if f.method == r.Method && strings.HasPrefix(path, f.prefix) {
			writeError(w, f.status, f.detail)
			return
		}
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "Users":
		s.handleUsers(w, r, body)
	case len(parts) == 2 && parts[0] == "Users":
		s.handleUser(w, r, parts[1], body)
	case len(parts) == 1 && parts[0] == "Groups":
		s.handleGroups(w, r)
	case len(parts) == 2 && parts[0] == "Groups":
		s.handleGroup(w, r, parts[1], body)
	case len(parts) == 1 && parts[0] == "Bulk" && r.Method == http.MethodPost:
		s.handleBulk(w, body)
	default:
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+path)
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, body []byte) {
	switch r.Method {
	case http.MethodGet:
		var matched []scim.User
		for _, u := range s.sortedUsers() {
			if matchFilter(r.URL.Query().Get("filter"), map[string]string{"userName": u.UserName, "displayName": u.DisplayName}) {
				matched = append(matched, s.withGroups(*u))
			}
		}
		writePage(w, r, matched)
	case http.MethodPost:
		status, v := s.createUser(body)
		writeJSON(w, status, v)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createUser(body []byte) (int, any) {
	var u scim.User
	if err := json.Unmarshal(body, &u); err != nil {
		return http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error())
	}
	if u.UserName == "" {
		return http.StatusBadRequest, errorBody(http.StatusBadRequest, "userName is required")
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.UserName, u.UserName) {
			return http.StatusConflict, errorBody(http.StatusConflict, "userName already exists")
		}
	}
	u.ID = s.newID("u")
	u.Groups = nil
	u.Meta = s.meta("User")
	s.users[u.ID] = &u
	return http.StatusCreated, s.withGroups(u)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "user "+id+" not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.withGroups(*u))
	case http.MethodPut:
		status, v := s.replaceUser(id, body)
		writeJSON(w, status, v)
	case http.MethodPatch:
		var patch scim.PatchRequest
		if err := json.Unmarshal(body, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, op := range patch.Operations {
			if err := applyUserOp(u, op); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		s.touch(u.Meta)
		writeJSON(w, http.StatusOK, s.withGroups(*u))
	case http.MethodDelete:
		delete(s.users, id)
		for _, g := range s.groups {
			g.Members = removeMember(g.Members, id)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) replaceUser(id string, body []byte) (int, any) {
	u, ok := s.users[id]
	if !ok {
		return http.StatusNotFound, errorBody(http.StatusNotFound, "user "+id+" not found")
	}
	var next scim.User
	if err := json.Unmarshal(body, &next); err != nil {
		return http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error())
	}
	next.ID = id
	next.Groups = nil
	next.Meta = u.Meta
	s.touch(next.Meta)
	s.users[id] = &next
	return http.StatusOK, s.withGroups(next)
}

func applyUserOp(u *scim.User, op scim.PatchOperation) error {
	switch {
	case strings.HasPrefix(op.Path, scim.SchemaUserAttribute+":"):
		key := strings.TrimPrefix(op.Path, scim.SchemaUserAttribute+":")
		if op.Op == "remove" {
			delete(u.Attributes, key)
			return nil
		}
		if u.Attributes == nil {
			u.Attributes = scim.Attributes{}
		}
		u.Attributes[key] = op.Value
	case op.Path == scim.SchemaUserAttribute:
		values, ok := op.Value.(map[string]any)
		if !ok {
			return fmt.Errorf("attribute value must be an object")
		}
		if u.Attributes == nil {
			u.Attributes = scim.Attributes{}
		}
		for k, v := range values {
			u.Attributes[k] = v
		}
	case op.Path == "displayName":
		u.DisplayName, _ = op.Value.(string)
	case op.Path == "name.givenName":
		ensureName(u).GivenName, _ = op.Value.(string)
	case op.Path == "name.familyName":
		ensureName(u).FamilyName, _ = op.Value.(string)
	case op.Path == "active":
		active, _ := op.Value.(bool)
		u.Active = &active
	case op.Path == "emails":
		data, _ := json.Marshal(op.Value)
		var emails []scim.Email
		if err := json.Unmarshal(data, &emails); err != nil {
			return err
		}
		u.Emails = emails
	default:
		return fmt.Errorf("unsupported patch path %q", op.Path)
	}
	return nil
}

func ensureName(u *scim.User) *scim.Name {
	if u.Name == nil {
		u.Name = &scim.Name{}
	}
	return u.Name
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matched []scim.Group
	for _, id := range ids {
		g := s.groups[id]
		if matchFilter(r.URL.Query().Get("filter"), map[string]string{"displayName": g.DisplayName}) {
			matched = append(matched, *g)
		}
	}
	writePage(w, r, matched)
}

var memberFilter = regexp.MustCompile(`^members\[value eq "([^"]*)"\]$`)

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	g, ok := s.groups[id]
	if !ok {
		writeError(w, http.StatusNotFound, "group "+id+" not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, g)
	case http.MethodPut:
		var next scim.Group
		if err := json.Unmarshal(body, &next); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ID = id
		next.Meta = g.Meta
		s.touch(next.Meta)
		s.groups[id] = &next
		writeJSON(w, http.StatusOK, next)
	case http.MethodPatch:
		var patch scim.PatchRequest
		if err := json.Unmarshal(body, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, op := range patch.Operations {
			switch {
			case op.Op == "add" && op.Path == "members":
				data, _ := json.Marshal(op.Value)
				var refs []scim.Reference
				if err := json.Unmarshal(data, &refs); err != nil {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				for _, ref := range refs {
					if _, exists := s.users[ref.Value]; !exists {
						writeError(w, http.StatusBadRequest, "unknown member "+ref.Value)
						return
					}
					if !g.HasMember(ref.Value) {
						g.Members = append(g.Members, ref)
					}
				}
			case op.Op == "remove" && memberFilter.MatchString(op.Path):
				g.Members = removeMember(g.Members, memberFilter.FindStringSubmatch(op.Path)[1])
			default:
				writeError(w, http.StatusBadRequest, "unsupported patch "+op.Op+" "+op.Path)
				return
			}
		}
		s.touch(g.Meta)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBulk(w http.ResponseWriter, body []byte) {
	var req scim.BulkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := scim.BulkResponse{Schemas: []string{scim.SchemaBulkResponse}}
	for _, op := range req.Operations {
		data, _ := json.Marshal(op.Data)

		var (
			status int
			v      any
		)
		switch {
		case op.Method == http.MethodPost && op.Path == "/Users":
			status, v = s.createUser(data)
		case op.Method == http.MethodPut && strings.HasPrefix(op.Path, "/Users/"):
			status, v = s.replaceUser(strings.TrimPrefix(op.Path, "/Users/"), data)
		default:
			status, v = http.StatusBadRequest, errorBody(http.StatusBadRequest, "unsupported bulk operation")
		}

		result := scim.BulkOperationResult{Method: op.Method, BulkID: op.BulkID, Status: strconv.Itoa(status)}
		if u, ok := v.(scim.User); ok {
			result.Location = constants.SCIMBasePath + "/Users/" + u.ID
		} else {
			result.Response, _ = json.Marshal(v)
		}
		resp.Operations = append(resp.Operations, result)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sortedUsers() []*scim.User {
	users := make([]*scim.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserName < users[j].UserName })
	return users
}

var filterTerm = regexp.MustCompile(`(\w+) (eq|co) "((?:[^"\\]|\\.)*)"`)

// matchFilter evaluates the "attr eq|co value [or ...]" subset of SCIM filters.
func matchFilter(filter string, fields map[string]string) bool {
	if filter == "" {
		return true
	}
	for _, m := range filterTerm.FindAllStringSubmatch(filter, -1) {
		value := strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(m[3])
		field := strings.ToLower(fields[m[1]])
		switch m[2] {
		case "eq":
			if field == strings.ToLower(value) {
				return true
			}
		case "co":
			if strings.Contains(field, strings.ToLower(value)) {
				return true
			}
		}
	}
	return false
}

func writePage[T any](w http.ResponseWriter, r *http.Request, all []T) {
	startIndex, _ := strconv.Atoi(r.URL.Query().Get("startIndex"))
	if startIndex < 1 {
		startIndex = 1
	}
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = constants.DefaultPageSize
	}

	from := min(startIndex-1, len(all))
	to := min(from+count, len(all))
	page := scim.ListResponse[T]{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: len(all),
		StartIndex:   startIndex,
		ItemsPerPage: to - from,
		Resources:    append([]T{}, all[from:to]...),
	}
	writeJSON(w, http.StatusOK, page)
}

func removeMember(members []scim.Reference, userID string) []scim.Reference {
	out := members[:0]
	for _, m := range members {
		if m.Value != userID {
			out = append(out, m)
		}
	}
	return out
}

func errorBody(status int, detail string) scim.Error {
	return scim.Error{
		Schemas: []string{scim.SchemaError},
		Status:  strconv.Itoa(status),
		Detail:  detail,
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody(status, detail))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
