package vm

import "github.com/hemashushu/ancvm/loader"

type frameKind uint8

const (
	frameKindCall frameKind = iota
	frameKindBlock
)

// frame is one entry of the flat, contiguous frame buffer spec.md §9
// describes ("represent the frame stack as a flat contiguous buffer of
// tagged frame records addressed by index; reverse-index arithmetic
// performs the walk; no back-pointers are needed"). A call frame doubles
// as block depth 0 of its own function: entering a function always pushes
// exactly one frame of kind call, and nested block/block_alt/block_nez
// push additional frames of kind block on top of it.
type frame struct {
	kind frameKind

	stackBase      int // operand stack height when this frame was entered
	localBase      int // offset into the thread's local-variable area
	localListIndex uint32
	resultTypes    []loader.ValueType // this frame's type result sequence
	paramCount     int                // param count, used when a recur escapes to a full function restart
	entryOffset    uint32             // instruction offset the frame's code body starts at

	// call-frame only: the target being invoked and where to resume the
	// caller once it returns.
	moduleIndex         uint32
	functionIndex       uint32
	typeIndex           uint32
	returnModuleIndex   uint32
	returnFunctionIndex uint32
	returnOffset        uint32
}

// frameStack is the thread's LIFO frame buffer.
type frameStack struct {
	frames []frame
	// callBase is the index, within frames, of the innermost call frame;
	// frames[callBase+1:] are the block frames opened inside it.
	callBase int
}

func (fs *frameStack) depth() int { return len(fs.frames) }

func (fs *frameStack) top() *frame { return &fs.frames[len(fs.frames)-1] }

func (fs *frameStack) pushCall(f frame) {
	fs.callBase = len(fs.frames)
	fs.frames = append(fs.frames, f)
}

func (fs *frameStack) pushBlock(f frame) {
	fs.frames = append(fs.frames, f)
}

// blockDepth is the number of block frames opened inside the current call
// frame (i.e. above fs.callBase).
func (fs *frameStack) blockDepth() int {
	return len(fs.frames) - 1 - fs.callBase
}

// unwindTarget resolves a break/recur reverse-index to the frame it lands
// on, and reports whether the unwind escapes the current call frame
// (meaning a function return for break, or a full function restart for
// recur, per spec.md §4.4.1's "a reverse-index that escapes the current
// call frame acts as function return / function tail-call").
//
// r is the count of block frames to unwind (GLOSSARY "Reverse index"):
// r=0 targets the innermost block frame itself, r=1 its parent, and so on;
// once r reaches the call frame (r >= blockDepth) the unwind escapes the
// function.
func (fs *frameStack) unwindTarget(r uint16) (targetIndex int, escapes bool) {
	targetIndex = len(fs.frames) - 1 - int(r)
	if targetIndex <= fs.callBase {
		return fs.callBase, true
	}
	return targetIndex, false
}

// popTo discards every frame above (and, if inclusive, including) index,
// restoring callBase to the call frame enclosing what remains.
func (fs *frameStack) popTo(index int, inclusive bool) {
	if inclusive {
		fs.frames = fs.frames[:index]
	} else {
		fs.frames = fs.frames[:index+1]
	}
	for i := len(fs.frames) - 1; i >= 0; i-- {
		if fs.frames[i].kind == frameKindCall {
			fs.callBase = i
			return
		}
	}
	fs.callBase = -1
}
