package rpc

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/tailscale/peercred"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// IdentityResolver derives the caller identity of an accepted connection.
type IdentityResolver func(ctx context.Context, c net.Conn) (telephony.Identity, error)

var errNoCreds = errors.New("peer credentials unavailable")

// PeerIdentity resolves the identity of the process on the other end of a
// unix socket. The pid and uid come from the kernel; the bundle name is the
// process name and the token id is derived from the executable path, so two
// processes running the same binary share a token.
func PeerIdentity(ctx context.Context, c net.Conn) (telephony.Identity, error) {
	if c == nil {
		return telephony.Identity{}, errNoCreds
	}
	creds, err := peercred.Get(c)
	if err != nil {
		return telephony.Identity{}, fmt.Errorf("%w: %v", errNoCreds, err)
	}
	pid, ok := creds.PID()
	if !ok {
		return telephony.Identity{}, fmt.Errorf("%w: no pid", errNoCreds)
	}
	id := telephony.Identity{PID: int32(pid)}
	if uid, ok := creds.UserID(); ok {
		n, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			return telephony.Identity{}, fmt.Errorf("parse uid %q: %w", uid, err)
		}
		id.UID = uint32(n)
	}

	proc, err := process.NewProcessWithContext(ctx, id.PID)
	if err != nil {
		// The peer may already be gone; pid and uid still identify it.
		return id, nil
	}
	if name, err := proc.NameWithContext(ctx); err == nil {
		id.BundleName = name
	}
	exe, err := proc.ExeWithContext(ctx)
	if err != nil || exe == "" {
		exe = id.BundleName
	}
	id.TokenID = tokenID(exe)
	return id, nil
}

func tokenID(exe string) uint32 {
	if exe == "" {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(exe))
	return h.Sum32()
}

// StaticIdentity resolves every connection to id. Tests use it to stand in
// for distinct processes.
func StaticIdentity(id telephony.Identity) IdentityResolver {
	return func(context.Context, net.Conn) (telephony.Identity, error) {
		return id, nil
	}
}
