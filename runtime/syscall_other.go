//go:build !linux

package runtime

import "golang.org/x/sys/unix"

// otherSysCalls is the non-Linux fallback (SPEC_FULL.md §6.5): the host
// mapping is an external collaborator on these platforms, so every
// syscall number reports ENOSYS rather than guessing at a mapping.
type otherSysCalls struct{}

func newSysCallHandler() *otherSysCalls { return &otherSysCalls{} }

func (otherSysCalls) SysCall(number uint32, args []uint64) (value uint64, errno uint64) {
	return 0, uint64(unix.ENOSYS)
}
