package gate

import "strings"

// Action is the verb half of a permission.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
)

// Permission is written "resource:action", e.g. "invoice:view".
// "*:*" grants everything and "invoice:*" grants every invoice action.
type Permission string

const (
	Wildcard      = "*"
	PermissionAll = Permission("*:*")
)

func NewPermission(resource string, action Action) Permission {
	return Permission(resource + ":" + string(action))
}

// Split returns the resource and action parts, or two empty strings when
// the permission is malformed.
func (p Permission) Split() (string, Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Covers reports whether holding p is enough for requested.
func (p Permission) Covers(requested Permission) bool {
	if p == PermissionAll || p == requested {
		return true
	}
	res, act := p.Split()
	reqRes, reqAct := requested.Split()
	if res == "" || reqRes == "" || reqAct == "" {
		return false
	}
	return res == reqRes && string(act) == Wildcard
}
