package registry

import (
	"strconv"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Authorizer answers permission questions about a caller. The registry
// treats it as an oracle and never caches its answers.
type Authorizer interface {
	CheckPermission(id telephony.Identity, perm telephony.Permission) bool
	IsSystemApp(id telephony.Identity) bool
}

// StaticAuthorizer grants permissions from fixed lists. An entry matches a
// caller by numeric uid, by bundle name, or unconditionally when it is "*".
type StaticAuthorizer struct {
	grants map[telephony.Permission][]string
	system []string
}

func NewStaticAuthorizer(grants map[telephony.Permission][]string, system []string) *StaticAuthorizer {
	a := &StaticAuthorizer{
		grants: make(map[telephony.Permission][]string, len(grants)),
		system: append([]string(nil), system...),
	}
	for perm, entries := range grants {
		a.grants[perm] = append([]string(nil), entries...)
	}
	return a
}

// Grant adds an entry for perm. It must not be called once the authorizer
// is in use.
func (a *StaticAuthorizer) Grant(perm telephony.Permission, entry string) {
	a.grants[perm] = append(a.grants[perm], entry)
}

func (a *StaticAuthorizer) CheckPermission(id telephony.Identity, perm telephony.Permission) bool {
	return matchesAny(a.grants[perm], id)
}

func (a *StaticAuthorizer) IsSystemApp(id telephony.Identity) bool {
	return matchesAny(a.system, id)
}

func matchesAny(entries []string, id telephony.Identity) bool {
	uid := strconv.FormatUint(uint64(id.UID), 10)
	for _, e := range entries {
		if e == "*" || e == uid || (id.BundleName != "" && e == id.BundleName) {
			return true
		}
	}
	return false
}

// AllowAll grants everything to everyone. Useful for tests and local
// development.
type AllowAll struct{}

func (AllowAll) CheckPermission(telephony.Identity, telephony.Permission) bool { return true }
func (AllowAll) IsSystemApp(telephony.Identity) bool                           { return true }

func canRegister(auth Authorizer, id telephony.Identity, k telephony.EventKind) bool {
	for _, perm := range k.RegisterPermissions() {
		if !auth.CheckPermission(id, perm) {
			return false
		}
	}
	return true
}
