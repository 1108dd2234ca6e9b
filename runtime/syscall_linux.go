//go:build linux

package runtime

import "golang.org/x/sys/unix"

// linuxSysCalls passes the `syscall` instruction's opaque number straight
// through to the host kernel (spec.md §4.4.4/§4.4.7, SPEC_FULL.md §6.5
// "syscall numbers are passed through opaquely"). The fixed six-argument
// shape matches syscallArgCount in vm/envsysext.go: unix.Syscall6 ignores
// trailing zero arguments on syscalls that take fewer.
type linuxSysCalls struct{}

func newSysCallHandler() *linuxSysCalls { return &linuxSysCalls{} }

func (linuxSysCalls) SysCall(number uint32, args []uint64) (value uint64, errno uint64) {
	r1, _, e := unix.Syscall6(uintptr(number),
		uintptr(args[0]), uintptr(args[1]), uintptr(args[2]),
		uintptr(args[3]), uintptr(args[4]), uintptr(args[5]))
	return uint64(r1), uint64(e)
}
