// Package device holds the single authoritative device state: the
// provisioning mode, the actuator settings, the cached network info, and the
// persisted provisioning configuration. Both the control loop and HTTP
// handlers read and mutate state only through this package.
package device

// Mode is the provisioning mode of the device. Exactly one value at a time,
// set only by the provisioning manager; the only way from Portal to
// Connected (or back) is a restart through the boot decision.
type Mode int

const (
	// ModeUninitialized is the transient pre-boot-decision state.
	ModeUninitialized Mode = iota
	// ModePortal means the device runs its own access point and setup portal.
	ModePortal
	// ModeConnected means the device joined the operator's network.
	ModeConnected
)

func (m Mode) String() string {
	switch m {
	case ModePortal:
		return "portal"
	case ModeConnected:
		return "connected"
	default:
		return "uninitialized"
	}
}

// ActuatorMode is what the sign output is doing. Persisted as an int.
type ActuatorMode int

const (
	ActuatorOff ActuatorMode = iota
	ActuatorOn
	ActuatorBreathing
)

func (m ActuatorMode) String() string {
	switch m {
	case ActuatorOn:
		return "on"
	case ActuatorBreathing:
		return "breathing"
	default:
		return "off"
	}
}

// ParseActuatorMode maps the API's mode names onto the enum.
func ParseActuatorMode(s string) (ActuatorMode, bool) {
	switch s {
	case "off":
		return ActuatorOff, true
	case "on":
		return ActuatorOn, true
	case "breathing":
		return ActuatorBreathing, true
	default:
		return ActuatorOff, false
	}
}

// ActuatorModeFromInt maps a persisted int onto the enum, falling back to
// off for anything unknown.
func ActuatorModeFromInt(n int) ActuatorMode {
	switch n {
	case int(ActuatorOn):
		return ActuatorOn
	case int(ActuatorBreathing):
		return ActuatorBreathing
	default:
		return ActuatorOff
	}
}
