package master

import (
	"time"

	"github.com/AHINK/mesos/allocator"
	"github.com/AHINK/mesos/internal/errors"
)

// NewAllocator builds the Allocator named by the master's --allocator
// flag (spec §6). "dominant" is the only built-in strategy; the
// interface itself is the pluggability point (spec §4.2 "Allocator
// protocol") for anyone wiring in another one.
func NewAllocator(name string, now func() time.Time) (allocator.Allocator, error) {
	switch name {
	case "", "dominant":
		return allocator.NewDominantShareAllocator(now), nil
	default:
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("unknown allocator: " + name)
	}
}
