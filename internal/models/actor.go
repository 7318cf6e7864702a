package models

import "slices"

// SystemActorID is recorded as creator or modifier when a write happens
// without an authenticated actor.
const SystemActorID = "ProductAPI-System"

// Actor identifies who performs a write. ActorID reports false when no
// authenticated identity is available.
type Actor interface {
	ActorID() (string, bool)
}

// Principal is the authenticated identity extracted from a bearer token.
type Principal struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// ActorID returns the identity-provider subject.
func (p Principal) ActorID() (string, bool) {
	return p.Subject, p.Subject != ""
}

// HasPermission reports whether the token granted perm.
func (p Principal) HasPermission(perm string) bool {
	return slices.Contains(p.Permissions, perm)
}

type systemActor struct{}

func (systemActor) ActorID() (string, bool) { return "", false }

// SystemActor is used for writes not triggered by a request, e.g. seeding.
var SystemActor Actor = systemActor{}

// ResolveActorID returns the actor's id, or SystemActorID when the actor is
// missing or unauthenticated.
func ResolveActorID(a Actor) string {
	if a == nil {
		return SystemActorID
	}
	if id, ok := a.ActorID(); ok && id != "" {
		return id
	}
	return SystemActorID
}
