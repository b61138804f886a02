// Package permissions defines the closed catalog of church-scoped
// capabilities and the default role compositions built from it.
package permissions

import "sort"

// Permission is a capability token such as "member.view".
type Permission string

// Group names a slice of the catalog covering one entity.
type Group string

const (
	GroupChurch        Group = "church"
	GroupRequest       Group = "request"
	GroupChurchRequest Group = "church_request"
	GroupLevel         Group = "level"
	GroupChurchLevel   Group = "church_level"
	GroupRole          Group = "role"
	GroupMember        Group = "member"
	GroupContact       Group = "contact"
	GroupEvent         Group = "event"
	GroupGroup         Group = "group"
	GroupGroupMember   Group = "group_member"
	GroupGroupEvent    Group = "group_event"
	GroupMe            Group = "me"
)

const (
	ChurchCreate Permission = "church.create"
	ChurchUpdate Permission = "church.update"
	ChurchDelete Permission = "church.delete"

	RequestSend Permission = "request.send"

	ChurchRequestAccept Permission = "church_request.accept"
	ChurchRequestReject Permission = "church_request.reject"
	ChurchRequestDelete Permission = "church_request.delete"

	LevelCreate Permission = "level.create"
	LevelUpdate Permission = "level.update"
	LevelDelete Permission = "level.delete"

	ChurchLevelAdd    Permission = "church_level.add"
	ChurchLevelRemove Permission = "church_level.remove"

	RoleCreate Permission = "role.create"
	RoleUpdate Permission = "role.update"
	RoleDelete Permission = "role.delete"

	MemberView   Permission = "member.view"
	MemberCreate Permission = "member.create"
	MemberUpdate Permission = "member.update"
	MemberDelete Permission = "member.delete"

	ContactView   Permission = "contact.view"
	ContactCreate Permission = "contact.create"
	ContactUpdate Permission = "contact.update"
	ContactDelete Permission = "contact.delete"

	EventCreate Permission = "event.create"
	EventUpdate Permission = "event.update"
	EventDelete Permission = "event.delete"

	GroupCreate Permission = "group.create"
	GroupUpdate Permission = "group.update"
	GroupDelete Permission = "group.delete"

	GroupMemberAdd    Permission = "group_member.add"
	GroupMemberRemove Permission = "group_member.remove"

	GroupEventAdd    Permission = "group_event.add"
	GroupEventRemove Permission = "group_event.remove"

	MeUpdate Permission = "me.update"
	MeDelete Permission = "me.delete"
)

// catalog lists every group in display order.
var catalog = []struct {
	group Group
	perms []Permission
}{
	{GroupChurch, []Permission{ChurchCreate, ChurchUpdate, ChurchDelete}},
	{GroupRequest, []Permission{RequestSend}},
	{GroupChurchRequest, []Permission{ChurchRequestAccept, ChurchRequestReject, ChurchRequestDelete}},
	{GroupLevel, []Permission{LevelCreate, LevelUpdate, LevelDelete}},
	{GroupChurchLevel, []Permission{ChurchLevelAdd, ChurchLevelRemove}},
	{GroupRole, []Permission{RoleCreate, RoleUpdate, RoleDelete}},
	{GroupMember, []Permission{MemberView, MemberCreate, MemberUpdate, MemberDelete}},
	{GroupContact, []Permission{ContactView, ContactCreate, ContactUpdate, ContactDelete}},
	{GroupEvent, []Permission{EventCreate, EventUpdate, EventDelete}},
	{GroupGroup, []Permission{GroupCreate, GroupUpdate, GroupDelete}},
	{GroupGroupMember, []Permission{GroupMemberAdd, GroupMemberRemove}},
	{GroupGroupEvent, []Permission{GroupEventAdd, GroupEventRemove}},
	{GroupMe, []Permission{MeUpdate, MeDelete}},
}

var known = func() map[Permission]Group {
	m := make(map[Permission]Group)
	for _, g := range catalog {
		for _, p := range g.perms {
			m[p] = g.group
		}
	}
	return m
}()

// Valid reports whether p belongs to the catalog.
func (p Permission) Valid() bool {
	_, ok := known[p]
	return ok
}

// Group returns the catalog group of p, or "" if p is unknown.
func (p Permission) Group() Group {
	return known[p]
}

// Parse converts s to a Permission and reports whether it is in the catalog.
func Parse(s string) (Permission, bool) {
	p := Permission(s)
	return p, p.Valid()
}

// InGroup returns the permissions of the given groups.
func InGroup(groups ...Group) []Permission {
	var out []Permission
	for _, g := range groups {
		for _, c := range catalog {
			if c.group == g {
				out = append(out, c.perms...)
			}
		}
	}
	return out
}

// All returns the full catalog.
func All() []Permission {
	out := make([]Permission, 0, len(known))
	for _, c := range catalog {
		out = append(out, c.perms...)
	}
	return out
}

// Set is an unordered set of permissions.
type Set map[Permission]struct{}

// NewSet builds a Set from perms.
func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// ContainsAll reports whether every permission in required is in s.
// An empty required set is trivially contained.
func (s Set) ContainsAll(required Set) bool {
	for p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether s and required share at least one permission.
func (s Set) ContainsAny(required Set) bool {
	for p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Sorted returns the permissions in lexical order.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
