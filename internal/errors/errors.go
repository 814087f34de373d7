// Package errors is the normalized error catalog for the resource manager
// core. Every error a component returns to a caller, or reports on the wire
// via a one-way error(code, message) frame, is declared here.
package errors

import (
	"github.com/pingcap/errors"
)

var (
	// general
	ErrUnknown = errors.Normalize(
		"unknown error",
		errors.RFCCodeText("MESOS:ErrUnknown"),
	)
	ErrInvalidArgument = errors.Normalize(
		"invalid argument: %s",
		errors.RFCCodeText("MESOS:ErrInvalidArgument"),
	)

	// actor runtime
	ErrActorNotFound = errors.Normalize(
		"no actor registered at address %s",
		errors.RFCCodeText("MESOS:ErrActorNotFound"),
	)
	ErrActorAlreadyExists = errors.Normalize(
		"an actor is already registered at address %s",
		errors.RFCCodeText("MESOS:ErrActorAlreadyExists"),
	)
	ErrMailboxClosed = errors.Normalize(
		"mailbox of %s is closed",
		errors.RFCCodeText("MESOS:ErrMailboxClosed"),
	)
	ErrFutureTimeout = errors.Normalize(
		"future for dispatch to %s timed out",
		errors.RFCCodeText("MESOS:ErrFutureTimeout"),
	)
	ErrFutureAlreadySettled = errors.Normalize(
		"future already settled",
		errors.RFCCodeText("MESOS:ErrFutureAlreadySettled"),
	)

	// resources
	ErrResourceUnderflow = errors.Normalize(
		"cannot subtract %s from %s: would underflow",
		errors.RFCCodeText("MESOS:ErrResourceUnderflow"),
	)
	ErrResourceParse = errors.Normalize(
		"cannot parse resource text %q: %s",
		errors.RFCCodeText("MESOS:ErrResourceParse"),
	)

	// framework registration / validation
	ErrFrameworkUnknown = errors.Normalize(
		"framework %s is not registered",
		errors.RFCCodeText("MESOS:ErrFrameworkUnknown"),
	)
	ErrFrameworkFailoverMismatch = errors.Normalize(
		"framework %s reregistered without failover, but master has no record of it",
		errors.RFCCodeText("MESOS:ErrFrameworkFailoverMismatch"),
	)

	// slave registration
	ErrSlaveUnknown = errors.Normalize(
		"slave %s is not registered",
		errors.RFCCodeText("MESOS:ErrSlaveUnknown"),
	)

	// offer validation (spec §4.2 step 7, §7 resource errors)
	ErrOfferUnknown = errors.Normalize(
		"offer %s is not outstanding",
		errors.RFCCodeText("MESOS:ErrOfferUnknown"),
	)
	ErrTaskIDReused = errors.Normalize(
		"task id %s already used by framework %s",
		errors.RFCCodeText("MESOS:ErrTaskIDReused"),
	)
	ErrTaskResourcesExceedOffer = errors.Normalize(
		"task %s requests %s, exceeding the %s remaining in offer %s",
		errors.RFCCodeText("MESOS:ErrTaskResourcesExceedOffer"),
	)

	// internal invariant violations (spec §7: abort the process after logging)
	ErrInvariantViolation = errors.Normalize(
		"internal invariant violated: %s",
		errors.RFCCodeText("MESOS:ErrInvariantViolation"),
	)

	// slave / executor (spec §4.4)
	ErrExecutorUnknown = errors.Normalize(
		"executor %s of framework %s is not known to this slave",
		errors.RFCCodeText("MESOS:ErrExecutorUnknown"),
	)
	ErrTaskUnknown = errors.Normalize(
		"task %s is not known to this slave",
		errors.RFCCodeText("MESOS:ErrTaskUnknown"),
	)
)
