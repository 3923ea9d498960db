package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/ffi"
	"github.com/wippyai/mlbridge/heap"
	"github.com/wippyai/mlbridge/value"
)

const wordBytes = value.WordSize

// Heap layout: word 0 is never a valid block, atoms follow, then the minor
// heap and the two major semispaces.
const (
	atomBase    = wordBytes
	staticBytes = 4096
)

type space struct {
	start, end, ptr uint32
}

func (s *space) contains(p uint32) bool { return p >= s.start && p < s.end }
func (s *space) used() uint32           { return s.ptr - s.start }
func (s *space) free() uint32           { return s.end - s.ptr }
func (s *space) capacity() uint32       { return s.end - s.start }

func layoutSize(minorWords, majorWords int) uint32 {
	return staticBytes + uint32(minorWords+2*majorWords)*wordBytes
}

func (r *Runtime) layout(minorWords, majorWords int) {
	for tag := 0; tag < 256; tag++ {
		r.view.StoreWord(atomBase+uint32(tag)*wordBytes, uint64(value.MakeHeader(0, uint8(tag), value.White)))
	}

	next := uint32(staticBytes)
	carve := func(words int) space {
		s := space{start: next, end: next + uint32(words)*wordBytes, ptr: next}
		next = s.end
		return s
	}
	r.minor = carve(minorWords)
	r.major = carve(majorWords)
	r.reserve = carve(majorWords)
}

// Atom returns the static zero-field block for tag.
func (r *Runtime) Atom(tag uint8) value.Value {
	return value.OfPointer(atomBase + uint32(tag)*wordBytes + wordBytes)
}

// IsYoung reports whether v lives in the minor heap.
func (r *Runtime) IsYoung(v value.Value) bool {
	return v.IsBlock() && r.minor.contains(v.Pointer())
}

// IsMajor reports whether v lives in the current major semispace.
func (r *Runtime) IsMajor(v value.Value) bool {
	return v.IsBlock() && r.major.contains(v.Pointer())
}

func blockBytes(wosize int) uint32 {
	return uint32(wosize+1) * wordBytes
}

// Alloc allocates a block of wosize fields. Blocks up to
// value.MaxYoungWosize go to the minor heap, larger ones straight to the
// major heap. Scanned blocks have every field set to value.Unit.
func (r *Runtime) Alloc(wosize int, tag uint8) value.Value {
	r.assertLocked("Alloc")
	if wosize < 0 {
		panic(errors.InvalidInput(errors.PhaseAlloc, "negative block size"))
	}
	if wosize == 0 {
		return r.Atom(tag)
	}
	if wosize <= value.MaxYoungWosize {
		return r.allocYoung(wosize, tag)
	}
	return r.allocMajor(wosize, tag)
}

// AllocSmall allocates in the minor heap.
func (r *Runtime) AllocSmall(wosize int, tag uint8) value.Value {
	r.assertLocked("AllocSmall")
	if wosize < 0 || wosize > value.MaxYoungWosize {
		panic(errors.InvalidInput(errors.PhaseAlloc, "small allocation outside 0..256 words"))
	}
	if wosize == 0 {
		return r.Atom(tag)
	}
	return r.allocYoung(wosize, tag)
}

// AllocString allocates a string of n bytes with its length recorded.
func (r *Runtime) AllocString(n int) value.Value {
	if n < 0 {
		panic(errors.InvalidInput(errors.PhaseAlloc, "negative string length"))
	}
	v := r.Alloc(heap.StringWosize(n), value.StringTag)
	r.view.InitString(v, n)
	return v
}

func (r *Runtime) allocYoung(wosize int, tag uint8) value.Value {
	r.beforeAlloc()
	need := blockBytes(wosize)
	if r.minor.free() < need || !r.promotable(need) {
		r.minorCollection()
		if !r.promotable(need) {
			r.outOfMemory(wosize, tag)
		}
	}
	addr := r.minor.ptr
	r.minor.ptr += need
	r.stats.MinorWordsAllocated += uint64(wosize + 1)
	return r.initBlock(addr, wosize, tag)
}

func (r *Runtime) allocMajor(wosize int, tag uint8) value.Value {
	r.beforeAlloc()
	need := blockBytes(wosize)
	if !r.majorFits(need) {
		r.fullCollection()
		if !r.majorFits(need) {
			r.outOfMemory(wosize, tag)
		}
	}
	addr := r.major.ptr
	r.major.ptr += need
	r.stats.MajorWordsAllocated += uint64(wosize + 1)
	return r.initBlock(addr, wosize, tag)
}

// majorFits keeps room for promoting a full minor heap after placing need
// bytes in the major heap.
func (r *Runtime) majorFits(need uint32) bool {
	return uint64(r.major.ptr)+uint64(need)+uint64(r.minor.capacity()) <= uint64(r.major.end)
}

// promotable reports whether the young space grown by need bytes can still
// be promoted into the free major space. After an Out_of_memory the major
// heap may hold less than a full minor heap of room; the young space then
// shrinks to what is left.
func (r *Runtime) promotable(need uint32) bool {
	return uint64(r.minor.used())+uint64(need) <= uint64(r.major.free())
}

func (r *Runtime) beforeAlloc() {
	if r.inFinalizers {
		panic(errors.New(errors.PhaseAlloc, errors.KindAllocation).
			Detail("allocation inside a finalizer").
			Build())
	}
	if r.forceMajor {
		r.forceMajor = false
		r.pressure = 0
		r.fullCollection()
	}
}

func (r *Runtime) initBlock(addr uint32, wosize int, tag uint8) value.Value {
	r.view.StoreWord(addr, uint64(value.MakeHeader(wosize, tag, value.White)))
	v := value.OfPointer(addr + wordBytes)
	if tag < value.NoScanTag {
		for i := 0; i < wosize; i++ {
			r.view.InitField(v, i, value.Unit)
		}
	}
	return v
}

func (r *Runtime) outOfMemory(wosize int, tag uint8) {
	r.log.Warn("heap exhausted",
		zap.Int("wosize", wosize),
		zap.Uint8("tag", tag),
		zap.Uint32("major_used", r.major.used()),
		zap.Uint32("major_capacity", r.major.capacity()))
	ctor, ok := r.ExceptionConstructor("Out_of_memory")
	if !ok {
		panic(errors.AllocationFailed(wosize, tag))
	}
	ffi.Raise(ctor)
}

// Modify stores v into field i of block, recording the field when an old
// block starts pointing into the minor heap.
func (r *Runtime) Modify(block value.Value, i int, v value.Value) {
	r.assertLocked("Modify")
	if block.IsInt() {
		panic(errors.InvalidInput(errors.PhaseRuntime, "modify on an immediate"))
	}
	if size := r.view.Size(block); i < 0 || i >= size {
		panic(errors.OutOfBounds(errors.PhaseRuntime, nil, i, size))
	}
	addr := heap.FieldAddr(block, i)
	r.view.StoreWord(addr, uint64(v))
	if r.IsMajor(block) && r.IsYoung(v) {
		r.remembered = append(r.remembered, addr)
	}
}

// finalEntry tracks one block with a finalizer.
type finalEntry struct {
	fn ffi.Finalizer
	v  value.Value
}

// AllocCustom allocates a custom block for ops, registering ops on first
// use. The payload is zeroed.
func (r *Runtime) AllocCustom(ops *ffi.CustomOps, payloadBytes int, used, total int) value.Value {
	r.assertLocked("AllocCustom")
	idx, err := r.RegisterCustom(ops)
	if err != nil {
		panic(err)
	}
	v := r.allocCustom(idx, heap.PayloadWords(payloadBytes), ops.Finalize)
	r.addPressure(used, total)
	return v
}

// AllocFinal allocates a custom block of wosize payload words finalized by
// finalize.
func (r *Runtime) AllocFinal(wosize int, finalize ffi.Finalizer, used, total int) value.Value {
	r.assertLocked("AllocFinal")
	idx, _ := r.RegisterCustom(r.finalOps)
	v := r.allocCustom(idx, wosize, finalize)
	r.addPressure(used, total)
	return v
}

func (r *Runtime) allocCustom(idx, payloadWords int, finalize ffi.Finalizer) value.Value {
	v := r.Alloc(1+payloadWords, value.CustomTag)
	r.view.InitField(v, 0, value.OfInt(int64(idx)))
	for i := 0; i < payloadWords; i++ {
		r.view.SetPayloadWord(v, i, 0)
	}
	if finalize != nil {
		r.finals = append(r.finals, finalEntry{v: v, fn: finalize})
	}
	return v
}

// addPressure accounts for resources held outside the heap. Once the sum of
// used/total ratios reaches 1 the next allocation runs a full collection.
func (r *Runtime) addPressure(used, total int) {
	if total <= 0 || used <= 0 {
		return
	}
	r.pressure += float64(used) / float64(total)
	if r.pressure >= 1 {
		r.forceMajor = true
	}
}
