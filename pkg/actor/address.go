package actor

import (
	"fmt"
	"regexp"

	"github.com/AHINK/mesos/internal/errors"
)

// Address identifies an actor on this or another process, in the
// "name(host:port)" form required by spec §6. It is a value type: handing
// an Address out never hands out a pointer into runtime state, so a dead
// peer can never leave a dangling reference (spec §9).
type Address string

// None is the reserved address that is never delivered to (spec §6).
const None Address = "__none__"

var addrPattern = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\(([^)]+)\)$`)

// NewAddress builds an Address from a logical actor name and a transport
// host:port.
func NewAddress(name, hostport string) Address {
	return Address(fmt.Sprintf("%s(%s)", name, hostport))
}

// Name returns the actor-name component of the address.
func (a Address) Name() (string, error) {
	m := addrPattern.FindStringSubmatch(string(a))
	if m == nil {
		return "", errors.ErrInvalidArgument.GenWithStackByArgs("malformed address " + string(a))
	}
	return m[1], nil
}

// HostPort returns the host:port component of the address.
func (a Address) HostPort() (string, error) {
	m := addrPattern.FindStringSubmatch(string(a))
	if m == nil {
		return "", errors.ErrInvalidArgument.GenWithStackByArgs("malformed address " + string(a))
	}
	return m[2], nil
}

// Valid reports whether a conforms to the name(host:port) grammar, or is
// the reserved None address.
func (a Address) Valid() bool {
	return a == None || addrPattern.MatchString(string(a))
}
