// Package network holds the error taxonomy shared by the probe packages.
package network

import "errors"

var (
	// ErrNotConnected is returned before any name resolution or socket
	// setup when the host has no usable network address. Calling into the
	// resolver in that state is a guaranteed failure.
	ErrNotConnected = errors.New("not connected")

	// ErrInvalidArgument is returned for out-of-range count, interval,
	// payload size or timeout values, before any network activity.
	ErrInvalidArgument = errors.New("invalid value")

	// ErrInvalidAddress is returned when a resolved or supplied address
	// cannot be converted to a usable binary form.
	ErrInvalidAddress = errors.New("invalid network address")

	// ErrSocketCreation is returned when the raw socket cannot be opened
	// or switched to non-blocking mode. Fatal to the current run.
	ErrSocketCreation = errors.New("socket creation failed")

	// ErrSendFailed is returned when an echo request cannot be written to
	// the socket. Fatal to the current run.
	ErrSendFailed = errors.New("couldn't sendto")

	// ErrTimeout marks a single echo whose reply never arrived. It is
	// counted as loss and never surfaced as a run failure.
	ErrTimeout = errors.New("timeout")
)
