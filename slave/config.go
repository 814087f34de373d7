package slave

// NewIsolation builds the slave's process isolation module. ProcessIsolation
// is the only built-in implementation; the Isolation interface itself is
// the pluggability point (spec §4.4) for a cgroup- or container-backed one.
func NewIsolation(switchUser bool) Isolation {
	return &ProcessIsolation{SwitchUser: switchUser}
}
