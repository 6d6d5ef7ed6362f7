//go:build linux

package poll

import "syscall"

func sysSelect(n int, r *syscall.FdSet, timeout *syscall.Timeval) error {
	_, err := syscall.Select(n, r, nil, nil, timeout)
	return err
}
