// Package identity carries the caller identity that the request layer hands to every
// core operation. The core never looks identity up on its own.
package identity

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

type Actor struct {
	SubjectID uint
	Role      Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may read a resource owned by ownerID.
func (a Actor) CanAccess(ownerID uint) bool {
	return a.IsAdmin() || a.SubjectID == ownerID
}
