// internal/app/system/authz/authz.go
package authz

import (
	"fmt"
	"strings"

	"github.com/dalemusser/shepherd/internal/app/system/apperr"
	"github.com/dalemusser/shepherd/internal/domain/models"
	"github.com/dalemusser/shepherd/internal/domain/permissions"
)

// Mode selects how required permissions are combined.
type Mode int

const (
	// All requires every listed permission.
	All Mode = iota
	// Any requires at least one listed permission.
	Any
)

func (m Mode) String() string {
	if m == Any {
		return "any"
	}
	return "all"
}

// Authorize decides whether caller, holding role, may act with the
// required permissions. It performs no I/O.
//
// A nil caller is Forbidden. A nil role is NotFound(role). An empty
// required list always passes in All mode and always fails in Any mode.
func Authorize(caller *models.Contact, role *models.Role, required []permissions.Permission, mode Mode) error {
	if caller == nil {
		return apperr.Forbidden(apperr.ReasonNoMembership, "you are not a member of this church")
	}
	if role == nil {
		e := apperr.NotFound("role", "")
		e.Reason = apperr.ReasonRoleNotFound
		return e
	}

	have := role.PermissionSet()
	need := permissions.NewSet(required...)

	ok := false
	switch mode {
	case Any:
		ok = have.ContainsAny(need)
	default:
		ok = have.ContainsAll(need)
	}
	if !ok {
		return apperr.Forbidden(apperr.ReasonInsufficient,
			fmt.Sprintf("role %q lacks %s of: %s", role.Name, mode, join(required)))
	}
	return nil
}

func join(ps []permissions.Permission) string {
	s := make([]string, len(ps))
	for i, p := range ps {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
