//go:build darwin

package poll

import "syscall"

func sysSelect(n int, r *syscall.FdSet, timeout *syscall.Timeval) error {
	return syscall.Select(n, r, nil, nil, timeout)
}
