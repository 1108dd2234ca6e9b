package runtime

import (
	"time"

	"github.com/hemashushu/ancvm/vm"
)

// Envcall primitive numbers (spec.md §6.3 / SPEC_FULL.md §6.3).
const (
	envRuntimeName     = 0x0001
	envRuntimeVersion  = 0x0002
	envRuntimeFeatures = 0x0003

	envTimeNow = 0x0100

	envThreadID                   = 0x0200
	envThreadCreate               = 0x0201
	envThreadWaitAndCollect       = 0x0202
	envThreadRunningStatus        = 0x0203
	envThreadTerminate            = 0x0204
	envThreadSleep                = 0x0205
	envThreadSendMsg              = 0x0206
	envThreadSendMsgToParent      = 0x0207
	envThreadReceiveMsg           = 0x0208
	envThreadReceiveMsgFromParent = 0x0209
	envThreadMsgLength            = 0x020a
	envThreadMsgRead              = 0x020b
	envThreadStartDataLength      = 0x020c
	envThreadStartDataRead        = 0x020d
)

const (
	runtimeCodeName     = "ancvm"
	runtimeMajorVersion = 0
	runtimeMinorVersion = 1
	runtimePatchVersion = 0

	// feature bits for runtime_features (SPEC_FULL.md §6.3 addition).
	featureDebugStackCheck = 1 << 0
	featureZstdCompression = 1 << 1
)

// envCallHandler answers the envcall instruction for one thread, against
// the registry its thread was spawned from. One instance per thread: the
// currentMsg field is goroutine-local state, touched only by the thread
// that owns it, so it needs no lock of its own.
type envCallHandler struct {
	registry *Registry
	self     *handle

	currentMsg []byte
}

func (e *envCallHandler) EnvCall(t *vm.Thread, number uint32) *vm.Trap {
	switch number {
	case envRuntimeName:
		return e.runtimeName(t)
	case envRuntimeVersion:
		e.runtimeVersion(t)
		return nil
	case envRuntimeFeatures:
		e.runtimeFeatures(t)
		return nil
	case envTimeNow:
		e.timeNow(t)
		return nil
	case envThreadID:
		t.PushUint32(t.ID)
		return nil
	case envThreadCreate:
		return e.threadCreate(t)
	case envThreadWaitAndCollect:
		return e.threadWaitAndCollect(t)
	case envThreadRunningStatus:
		return e.threadRunningStatus(t)
	case envThreadTerminate:
		return e.threadTerminate(t)
	case envThreadSleep:
		return e.threadSleep(t)
	case envThreadSendMsg:
		return e.threadSendMsg(t)
	case envThreadSendMsgToParent:
		return e.threadSendMsgToParent(t)
	case envThreadReceiveMsg:
		return e.threadReceiveMsg(t)
	case envThreadReceiveMsgFromParent:
		return e.threadReceiveMsgFromParent(t)
	case envThreadMsgLength:
		t.PushUint32(uint32(len(e.currentMsg)))
		return nil
	case envThreadMsgRead:
		return e.threadMsgRead(t)
	case envThreadStartDataLength:
		t.PushUint32(uint32(len(t.StartData)))
		return nil
	case envThreadStartDataRead:
		return e.threadStartDataRead(t)
	default:
		return t.Trap(vm.TrapUnreachableCode, number)
	}
}

// runtimeName writes the runtime's name into the caller-supplied buffer and
// pushes its length, mirroring envcall_runtime_info.rs's
// test_assemble_envcall_runtime_name.
func (e *envCallHandler) runtimeName(t *vm.Thread) *vm.Trap {
	addr, _ := t.PopUint64()
	buf, trap := t.ResolveHostAddr(addr)
	if trap != nil {
		return trap
	}
	name := []byte(runtimeCodeName)
	if len(buf) < len(name) {
		return t.Trap(vm.TrapMemoryOutOfBounds, uint32(len(name)))
	}
	copy(buf, name)
	t.PushUint32(uint32(len(name)))
	return nil
}

// runtimeVersion pushes major/minor/patch packed into one u64, per
// envcall_runtime_info.rs's test_assemble_envcall_runtime_version.
func (e *envCallHandler) runtimeVersion(t *vm.Thread) {
	v := uint64(runtimePatchVersion) |
		uint64(runtimeMinorVersion)<<16 |
		uint64(runtimeMajorVersion)<<32
	t.PushUint64(v)
}

// runtimeFeatures pushes a bitset an embedding host can branch on without a
// separate build-tag protocol (SPEC_FULL.md §6.3 addition).
func (e *envCallHandler) runtimeFeatures(t *vm.Thread) {
	t.PushUint32(featureDebugStackCheck | featureZstdCompression)
}

// timeNow pushes (secs: i64, nanos: i32), per envcall_time.rs.
func (e *envCallHandler) timeNow(t *vm.Thread) {
	now := time.Now()
	t.PushInt64(now.Unix())
	t.PushUint32(uint32(now.Nanosecond()))
}

// threadCreate resolves function_public_index's type (must be () -> i32),
// copies start_data_len bytes from the parent's memory at start_data_ptr,
// and spawns the child, pushing its id (spec.md §4.5).
func (e *envCallHandler) threadCreate(t *vm.Thread) *vm.Trap {
	startDataLen, _ := t.PopUint32()
	startDataPtr, _ := t.PopUint64()
	functionPublicIndex, _ := t.PopUint32()

	var startData []byte
	if startDataLen > 0 {
		buf, trap := t.ResolveHostAddr(startDataPtr)
		if trap != nil {
			return trap
		}
		if uint32(len(buf)) < startDataLen {
			return t.Trap(vm.TrapMemoryOutOfBounds, startDataLen)
		}
		startData = buf[:startDataLen]
	}

	childID, trap := e.registry.spawn(t.ID, functionPublicIndex, startData)
	if trap != nil {
		return trap
	}
	t.PushUint32(childID)
	return nil
}

// threadWaitAndCollect pushes (exit_code: i64, result: i32); result is 1
// when tid was never found, per envcall_multithread.rs.
func (e *envCallHandler) threadWaitAndCollect(t *vm.Thread) *vm.Trap {
	tid, _ := t.PopUint32()
	exitCode, result := e.registry.waitAndCollect(tid)
	t.PushInt64(exitCode)
	t.PushUint32(uint32(result))
	return nil
}

// threadRunningStatus pushes (status: i32, result: i32).
func (e *envCallHandler) threadRunningStatus(t *vm.Thread) *vm.Trap {
	tid, _ := t.PopUint32()
	status, result := e.registry.runningStatus(tid)
	t.PushUint32(uint32(status))
	t.PushUint32(uint32(result))
	return nil
}

// threadTerminate is a pure side effect: no value is pushed back.
func (e *envCallHandler) threadTerminate(t *vm.Thread) *vm.Trap {
	tid, _ := t.PopUint32()
	e.registry.terminate(tid)
	return nil
}

// threadSleep blocks the calling thread, waking early if it is terminated
// mid-sleep so cancellation stays cooperative even across a blocking call.
func (e *envCallHandler) threadSleep(t *vm.Thread) *vm.Trap {
	ms, _ := t.PopUint64()
	const slice = 10 * time.Millisecond
	remaining := time.Duration(ms) * time.Millisecond
	for remaining > 0 {
		if e.self.isTerminated() {
			return nil
		}
		step := slice
		if remaining < step {
			step = remaining
		}
		time.Sleep(step)
		remaining -= step
	}
	return nil
}

// threadSendMsg copies len bytes from the caller's memory at src_ptr into
// tid's inbox, pushing 0 on success or 1 if tid doesn't exist.
func (e *envCallHandler) threadSendMsg(t *vm.Thread) *vm.Trap {
	length, _ := t.PopUint32()
	srcPtr, _ := t.PopUint64()
	tid, _ := t.PopUint32()

	buf, trap := t.ResolveHostAddr(srcPtr)
	if trap != nil {
		return trap
	}
	if uint32(len(buf)) < length {
		return t.Trap(vm.TrapMemoryOutOfBounds, length)
	}
	ok := e.registry.sendMsg(tid, t.ID, buf[:length])
	t.PushBool(!ok)
	return nil
}

// threadSendMsgToParent is threadSendMsg with the receiver fixed to the
// calling thread's parent.
func (e *envCallHandler) threadSendMsgToParent(t *vm.Thread) *vm.Trap {
	length, _ := t.PopUint32()
	srcPtr, _ := t.PopUint64()

	buf, trap := t.ResolveHostAddr(srcPtr)
	if trap != nil {
		return trap
	}
	if uint32(len(buf)) < length {
		return t.Trap(vm.TrapMemoryOutOfBounds, length)
	}
	ok := e.registry.sendMsg(e.self.parentID, t.ID, buf[:length])
	t.PushBool(!ok)
	return nil
}

// threadReceiveMsg blocks until a message from tid arrives, caches it as
// the current inbox message, and pushes (length, result).
func (e *envCallHandler) threadReceiveMsg(t *vm.Thread) *vm.Trap {
	tid, _ := t.PopUint32()
	msg, ok := e.self.inbox.receive(tid)
	if !ok {
		e.currentMsg = nil
		t.PushUint32(0)
		t.PushUint32(1)
		return nil
	}
	e.currentMsg = msg
	t.PushUint32(uint32(len(msg)))
	t.PushUint32(0)
	return nil
}

// threadReceiveMsgFromParent is threadReceiveMsg with the sender fixed to
// the calling thread's parent.
func (e *envCallHandler) threadReceiveMsgFromParent(t *vm.Thread) *vm.Trap {
	msg, ok := e.self.inbox.receive(e.self.parentID)
	if !ok {
		e.currentMsg = nil
		t.PushUint32(0)
		t.PushUint32(1)
		return nil
	}
	e.currentMsg = msg
	t.PushUint32(uint32(len(msg)))
	t.PushUint32(0)
	return nil
}

// threadMsgRead copies up to length bytes of the current inbox message
// starting at offset into dst_addr, pushing the actual number copied
// (clamped to what remains past offset, per envcall_multithread.rs).
func (e *envCallHandler) threadMsgRead(t *vm.Thread) *vm.Trap {
	dstAddr, _ := t.PopUint64()
	length, _ := t.PopUint32()
	offset, _ := t.PopUint32()
	return readClamped(t, e.currentMsg, offset, length, dstAddr)
}

// threadStartDataRead is threadMsgRead over the thread's own start data.
func (e *envCallHandler) threadStartDataRead(t *vm.Thread) *vm.Trap {
	dstAddr, _ := t.PopUint64()
	length, _ := t.PopUint32()
	offset, _ := t.PopUint32()
	return readClamped(t, t.StartData, offset, length, dstAddr)
}

// readClamped copies min(length, len(src)-offset) bytes from src[offset:]
// into the host address dstAddr and pushes the count actually copied.
func readClamped(t *vm.Thread, src []byte, offset, length uint32, dstAddr uint64) *vm.Trap {
	dst, trap := t.ResolveHostAddr(dstAddr)
	if trap != nil {
		return trap
	}

	var available uint32
	if offset < uint32(len(src)) {
		available = uint32(len(src)) - offset
	}
	n := length
	if n > available {
		n = available
	}
	if uint32(len(dst)) < n {
		return t.Trap(vm.TrapMemoryOutOfBounds, n)
	}
	copy(dst[:n], src[offset:offset+n])
	t.PushUint32(n)
	return nil
}
