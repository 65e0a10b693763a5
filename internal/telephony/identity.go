package telephony

import "fmt"

// Identity describes the process on the other end of an RPC connection.
// The transport fills it in from the connection itself; callers never
// supply it.
type Identity struct {
	PID        int32  `json:"pid"`
	UID        uint32 `json:"uid"`
	TokenID    uint32 `json:"tokenId"`
	BundleName string `json:"bundleName,omitempty"`
}

// SameCaller reports whether id and other denote the same calling process.
// Both the process id and the token id must agree.
func (id Identity) SameCaller(other Identity) bool {
	return id.PID == other.PID && id.TokenID == other.TokenID
}

func (id Identity) String() string {
	if id.BundleName != "" {
		return fmt.Sprintf("%s(pid=%d uid=%d token=%#x)", id.BundleName, id.PID, id.UID, id.TokenID)
	}
	return fmt.Sprintf("pid=%d uid=%d token=%#x", id.PID, id.UID, id.TokenID)
}
