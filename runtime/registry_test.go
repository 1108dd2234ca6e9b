package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

var i32Result = [2][]loader.ValueType{nil, {loader.ValueTypeI32}}

func TestRunMainReturnsEntryExitCode(t *testing.T) {
	defer goleak.VerifyNone(t)

	code := new(asm).op(vm.OpImmI32).i32(42).op(vm.OpEnd).code()
	mod := buildModule(
		typeSection(i32Result),
		functionSection(fn{typeIndex: 0, code: code}),
		localListSection(nil),
	)
	prog := linkSingle(t, mod)

	r := NewRegistry(prog)
	exitCode, trap := r.RunMain(0, nil)
	require.Nil(t, trap)
	assert.Equal(t, int32(42), exitCode)
}

// TestSpawnWaitAndCollect builds a two-function program: function 0 spawns
// function 1 as a child thread and waits for it, returning its exit code;
// function 1 just returns a constant. Mirrors
// envcall_multithread.rs's thread_create/thread_wait_and_collect pairing.
func TestSpawnWaitAndCollect(t *testing.T) {
	defer goleak.VerifyNone(t)

	child := new(asm).op(vm.OpImmI32).i32(7).op(vm.OpEnd).code()
	parent := new(asm).
		op(vm.OpImmI32).u32(1). // function_public_index of child
		op(vm.OpImmI64).u64(0). // start_data_ptr (unused, len 0)
		op(vm.OpImmI32).u32(0). // start_data_len
		op(vm.OpEnvCall).u32(envThreadCreate).
		op(vm.OpEnvCall).u32(envThreadWaitAndCollect).
		op(vm.OpDrop). // drop wait_and_collect's result code
		op(vm.OpI32TruncateI64).
		op(vm.OpEnd).
		code()

	mod := buildModule(
		typeSection(i32Result, i32Result),
		functionSection(
			fn{typeIndex: 0, code: parent},
			fn{typeIndex: 1, code: child},
		),
		localListSection(nil, nil),
	)
	prog := linkSingle(t, mod)

	r := NewRegistry(prog)
	exitCode, trap := r.RunMain(0, nil)
	require.Nil(t, trap)
	assert.Equal(t, int32(7), exitCode)
}

func TestTerminateMakesThreadNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	// A child that sleeps 60 seconds in thread_sleep, far longer than the
	// test runs, so terminate races a live thread rather than one that
	// already finished naturally.
	child := new(asm).
		op(vm.OpImmI64).u64(60_000).
		op(vm.OpEnvCall).u32(envThreadSleep).
		op(vm.OpImmI32).i32(0).
		op(vm.OpEnd).
		code()

	mod := buildModule(
		typeSection(i32Result),
		functionSection(fn{typeIndex: 0, code: child}),
		localListSection(nil),
	)
	prog := linkSingle(t, mod)
	r := NewRegistry(prog)

	id, trap := r.spawn(0, 0, nil)
	require.Nil(t, trap)

	status, result := r.runningStatus(id)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, int32(0), result)

	ok := r.terminate(id)
	assert.True(t, ok)

	_, result = r.runningStatus(id)
	assert.Equal(t, int32(1), result)

	_, result = r.waitAndCollect(id)
	assert.Equal(t, int32(1), result)

	// terminate removes the handle immediately but the sleeping goroutine
	// only notices at its next poll tick; give it room to unwind before
	// this test's deferred leak check runs.
	time.Sleep(50 * time.Millisecond)
}

func TestWaitAndCollectUnknownThreadReportsNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	mod := buildModule(
		typeSection(i32Result),
		functionSection(fn{typeIndex: 0, code: new(asm).op(vm.OpImmI32).i32(0).op(vm.OpEnd).code()}),
		localListSection(nil),
	)
	prog := linkSingle(t, mod)
	r := NewRegistry(prog)

	exitCode, result := r.waitAndCollect(999)
	assert.Equal(t, int64(0), exitCode)
	assert.Equal(t, int32(1), result)
}
