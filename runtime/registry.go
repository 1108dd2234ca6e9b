// Package runtime is the thread runtime of spec.md §4.5: it spawns
// interpreter threads as goroutines, gives each one a private data-section
// copy (vm.NewThread already does this) plus an inbox, and answers the
// threading envcalls (thread_create, thread_wait_and_collect, thread_send_msg,
// ...) against a process-wide registry.
//
// Grounded on the teacher's speedboat-era master/worker idiom: comm.Message's
// topic-addressed delivery generalizes to inbox.send/receive keyed by sender
// thread id, actions/run.LoadTestProcessor's controlChannel generalizes to
// the terminate/join signal on handle.done, and actions/registry.Registry's
// "register by key, look up by key" shape becomes Registry's map[uint32].
package runtime

import (
	"sync"

	"github.com/hemashushu/ancvm/linker"
	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

// Registry is the process-wide table of live and finished threads, keyed by
// thread id. The main thread always occupies id 0.
type Registry struct {
	program  *linker.LinkedProgram
	extCalls *extCallHandler

	mu      sync.Mutex
	nextID  uint32
	threads map[uint32]*handle
}

// NewRegistry builds a registry over program with no threads registered
// yet; RunMain registers the main thread as id 0 and runs it, and spawned
// children take ids from 1.
func NewRegistry(program *linker.LinkedProgram) *Registry {
	r := &Registry{
		program:  program,
		extCalls: newExtCallHandler(program),
		nextID:   1,
		threads:  make(map[uint32]*handle),
	}
	return r
}

func (r *Registry) attachHandlers(th *vm.Thread, h *handle) {
	th.EnvCalls = &envCallHandler{registry: r, self: h}
	th.SysCalls = newSysCallHandler()
	th.ExtCalls = r.extCalls
}

// handle is the registry's bookkeeping for one thread: its interpreter, its
// inbox, and the outcome once it finishes.
type handle struct {
	id       uint32
	parentID uint32
	thread   *vm.Thread
	inbox    *inbox
	done     chan struct{}

	mu         sync.Mutex
	finished   bool
	terminated bool
	exitCode   int64
	trap       *vm.Trap
}

func (h *handle) isTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *handle) markDone(exitCode int64, trap *vm.Trap) {
	h.mu.Lock()
	h.finished = true
	h.exitCode = exitCode
	h.trap = trap
	h.mu.Unlock()
	h.inbox.close()
	close(h.done)
}

// RunMain starts the main thread (id 0) synchronously on the calling
// goroutine with startData as its thread_start_data_length/_read payload,
// blocking until it finishes, and returns its exit code (the low 32 bits of
// its result, per spec.md §6.4) and any trap it raised.
func (r *Registry) RunMain(entryFunctionPublicIndex uint32, startData []byte) (int32, *vm.Trap) {
	th, err := vm.NewThread(r.program, 0)
	if err != nil {
		return 0, &vm.Trap{Kind: vm.TrapUnreachableCode}
	}
	th.StartData = startData
	h := &handle{id: 0, parentID: 0, thread: th, inbox: newInbox(), done: make(chan struct{})}
	r.attachHandlers(th, h)

	r.mu.Lock()
	r.threads[0] = h
	r.mu.Unlock()

	results, trap := th.Run(entryFunctionPublicIndex)
	exitCode := resultExitCode(results)
	h.markDone(exitCode, trap)
	return int32(exitCode), trap
}

// spawn starts function as a new child thread of parent, copying
// startData into its private memory, and returns its id. function's type
// must be () -> i32 (spec.md §4.5).
func (r *Registry) spawn(parentID uint32, functionPublicIndex uint32, startData []byte) (uint32, *vm.Trap) {
	if int(functionPublicIndex) >= len(r.program.FunctionTable) {
		return 0, &vm.Trap{Kind: vm.TrapTypeMismatch}
	}
	ref := r.program.FunctionTable[functionPublicIndex]
	mod := r.program.Modules[ref.ModuleIndex]
	fn, err := mod.GetFunctionEntry(ref.InternalIndex)
	if err != nil {
		return 0, &vm.Trap{Kind: vm.TrapTypeMismatch}
	}
	typ, err := mod.GetTypeEntry(fn.TypeIndex)
	if err != nil {
		return 0, &vm.Trap{Kind: vm.TrapTypeMismatch}
	}
	if len(typ.Params) != 0 || len(typ.Results) != 1 || typ.Results[0] != loader.ValueTypeI32 {
		return 0, &vm.Trap{Kind: vm.TrapTypeMismatch}
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.mu.Unlock()

	th, err := vm.NewThread(r.program, id)
	if err != nil {
		return 0, &vm.Trap{Kind: vm.TrapUnreachableCode}
	}

	r.mu.Lock()
	h := &handle{id: id, parentID: parentID, thread: th, inbox: newInbox(), done: make(chan struct{})}
	r.attachHandlers(th, h)
	r.threads[id] = h
	r.mu.Unlock()

	startCopy := append([]byte(nil), startData...)
	go func() {
		results, trap := withStartData(th, startCopy, functionPublicIndex)
		h.mu.Lock()
		terminated := h.terminated
		h.mu.Unlock()
		if terminated {
			h.markDone(0, nil)
			return
		}
		h.markDone(resultExitCode(results), trap)
	}()

	return id, nil
}

// get looks a thread up by id, reporting found=false for an id that was
// never issued or was already removed by terminate.
func (r *Registry) get(id uint32) (*handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.threads[id]
	return h, ok
}

// sendMsg delivers data to receiverID's inbox tagged with senderID, and
// reports whether the receiver exists (spec.md §4.5's send result: 0
// success / 1 failure is the caller's bool-to-push, not this one's).
func (r *Registry) sendMsg(receiverID, senderID uint32, data []byte) bool {
	h, ok := r.get(receiverID)
	if !ok {
		return false
	}
	h.inbox.send(senderID, data)
	return true
}

// terminate asynchronously stops tid's thread (spec.md §4.5 "cooperative at
// instruction boundaries"); a subsequent running_status reports not-found.
func (r *Registry) terminate(id uint32) bool {
	r.mu.Lock()
	h, ok := r.threads[id]
	if ok {
		delete(r.threads, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.mu.Lock()
	h.terminated = true
	h.mu.Unlock()
	h.thread.Terminate()
	return true
}

// waitAndCollect blocks until tid finishes (naturally or via terminate),
// returning (exitCode, result) per spec.md §4.5: result 0 on success, 1 if
// tid was never found.
func (r *Registry) waitAndCollect(id uint32) (int64, int32) {
	h, ok := r.get(id)
	if !ok {
		return 0, 1
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, 0
}

// runningStatus reports (status, result): status 0 running / 1 finished,
// result 0 found / 1 not-found.
func (r *Registry) runningStatus(id uint32) (int32, int32) {
	h, ok := r.get(id)
	if !ok {
		return 0, 1
	}
	select {
	case <-h.done:
		return 1, 0
	default:
		return 0, 0
	}
}

func resultExitCode(results []uint64) int64 {
	if len(results) == 0 {
		return 0
	}
	return int64(int32(uint32(results[0])))
}

// withStartData attaches startData to t for the duration of its run (the
// envcall handler reads it back via thread_start_data_length/_read) and
// executes it from functionPublicIndex.
func withStartData(t *vm.Thread, startData []byte, functionPublicIndex uint32) ([]uint64, *vm.Trap) {
	t.StartData = startData
	return t.Run(functionPublicIndex)
}
