package plan

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Source describes the remote endpoint a scan resolves to. It is supplied by
// the host's catalog/session configuration and treated as opaque data here.
type Source struct {
	Driver   string            `json:"driver"`
	DSN      string            `json:"dsn,omitempty"`
	Hosts    []string          `json:"hosts,omitempty"`
	Database string            `json:"database,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// Identity is an opaque connection identity. Two relations may only be merged
// into one statement when their identities are equal; comparison is a pure
// value comparison.
type Identity uuid.UUID

// Zero reports whether the identity is unset.
func (id Identity) Zero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id Identity) String() string {
	return uuid.UUID(id).String()
}

// IdentityResolver derives a connection identity from a source configuration.
type IdentityResolver func(Source) Identity

// ResolveIdentity is the default resolver: a deterministic digest of the
// canonical endpoint configuration. Equal configurations always produce equal
// identities regardless of host or option ordering.
func ResolveIdentity(s Source) Identity {
	hosts := append([]string(nil), s.Hosts...)
	sort.Strings(hosts)

	opts := make([]string, 0, len(s.Options))
	for k, v := range s.Options {
		opts = append(opts, k+"="+v)
	}
	sort.Strings(opts)

	var b strings.Builder
	b.WriteString(s.Driver)
	b.WriteByte('\n')
	b.WriteString(s.DSN)
	b.WriteByte('\n')
	b.WriteString(strings.Join(hosts, ","))
	b.WriteByte('\n')
	b.WriteString(s.Database)
	b.WriteByte('\n')
	b.WriteString(strings.Join(opts, ","))

	return Identity(uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())))
}
