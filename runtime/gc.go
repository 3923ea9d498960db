package runtime

import (
	"encoding/binary"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/heap"
	"github.com/wippyai/mlbridge/value"
)

// poisonWord fills evacuated space. It reads as an odd integer, and as a
// block header it claims an absurd size.
const poisonWord = 0xdeadbeefdeadbeef

// evacuator copies live blocks out of the from spaces into to, leaving a
// forwarding header (zero) with the new address in field 0.
type evacuator struct {
	r      *Runtime
	h      heap.View
	to     *space
	from   []*space
	copied uint64
}

func (e *evacuator) inFrom(p uint32) bool {
	for _, s := range e.from {
		if s.contains(p) {
			return true
		}
	}
	return false
}

func (e *evacuator) forward(v value.Value) value.Value {
	if v.IsInt() || !e.inFrom(v.Pointer()) {
		return v
	}
	hd := e.h.Header(v)
	if hd == 0 {
		return e.h.Field(v, 0)
	}

	n := blockBytes(hd.Wosize())
	if e.to.free() < n {
		panic(errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Detail("to-space overflow copying %d bytes", n).
			Build())
	}
	dst := e.to.ptr
	e.to.ptr += n
	e.r.copyBytes(dst, v.Pointer()-wordBytes, n)
	e.copied += uint64(hd.Wosize() + 1)

	nv := value.OfPointer(dst + wordBytes)
	e.h.SetHeader(v, 0)
	e.h.InitField(v, 0, nv)
	return nv
}

func (e *evacuator) forwardSlot(slot *value.Value) {
	*slot = e.forward(*slot)
}

// scan walks the blocks copied since from, forwarding their fields, until
// it catches up with the allocation pointer.
func (e *evacuator) scan(from uint32) {
	for p := from; p < e.to.ptr; {
		hd := value.Header(e.h.LoadWord(p))
		v := value.OfPointer(p + wordBytes)
		if hd.Scannable() {
			for i := 0; i < hd.Wosize(); i++ {
				f := e.h.Field(v, i)
				if nf := e.forward(f); nf != f {
					e.h.InitField(v, i, nf)
				}
			}
		}
		p += blockBytes(hd.Wosize())
	}
}

// isForwarded reports whether a block in a from space has been copied, and
// where to.
func (e *evacuator) isForwarded(v value.Value) (value.Value, bool) {
	if e.h.Header(v) != 0 {
		return 0, false
	}
	return e.h.Field(v, 0), true
}

func (r *Runtime) copyBytes(dst, src, n uint32) {
	b, err := r.mem.Read(src, n)
	if err != nil {
		panic(errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "collector read"))
	}
	if err := r.mem.Write(dst, b); err != nil {
		panic(errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "collector write"))
	}
}

// eachRoot visits the local chain, parked chains and global roots. A minor
// collection skips generational globals that were not set since the last
// one.
func (r *Runtime) eachRoot(minor bool, fn func(slot *value.Value)) {
	r.chain.Each(fn)
	for s := range r.parked {
		s.Each(fn)
	}
	if minor {
		r.globals.EachYoung(fn)
	} else {
		r.globals.Each(fn)
	}
}

// enterCollection marks a collection as running and returns the func that
// clears the mark; it is deferred so a panic mid-collection cannot leave
// the runtime refusing every later collection.
func (r *Runtime) enterCollection() func() {
	if r.collecting {
		panic(errors.RootCorruption("collection re-entered"))
	}
	r.collecting = true
	return func() { r.collecting = false }
}

// minorCollection promotes every live young block into the major heap and
// runs a full collection when the major heap can no longer take a whole
// minor heap.
func (r *Runtime) minorCollection() {
	r.promoteYoung()
	if !r.majorFits(0) {
		r.fullCollection()
	}
}

// promoteYoung copies live young blocks to the major heap. Allocation keeps
// the young space no larger than the free major space, so promotion always
// fits.
func (r *Runtime) promoteYoung() {
	defer r.enterCollection()()
	start := time.Now()

	scanFrom := r.major.ptr
	ev := &evacuator{r: r, h: r.view, to: &r.major, from: []*space{&r.minor}}
	r.eachRoot(true, ev.forwardSlot)
	for _, addr := range r.remembered {
		w := value.Value(r.view.LoadWord(addr))
		if nw := ev.forward(w); nw != w {
			r.view.StoreWord(addr, uint64(nw))
		}
	}
	ev.scan(scanFrom)

	remembered := len(r.remembered)
	r.remembered = r.remembered[:0]
	dead := r.sweepFinals(ev)
	r.runFinalizers(dead)

	if r.cfg.Poison {
		r.poison(r.minor.start, r.minor.ptr)
	}
	youngUsed := r.minor.used()
	r.minor.ptr = r.minor.start

	r.stats.MinorCollections++
	r.stats.PromotedWords += ev.copied

	r.log.Debug("minor collection",
		zap.Uint32("young_bytes", youngUsed),
		zap.Uint64("promoted_words", ev.copied),
		zap.Int("remembered", remembered),
		zap.Int("finalized", len(dead)),
		zap.Duration("took", time.Since(start)))
}

// fullCollection copies every live block, young or old, into the reserve
// semispace and swaps the semispaces.
func (r *Runtime) fullCollection() {
	defer r.enterCollection()()
	start := time.Now()

	to := r.reserve
	to.ptr = to.start
	ev := &evacuator{r: r, h: r.view, to: &to, from: []*space{&r.minor, &r.major}}
	r.eachRoot(false, ev.forwardSlot)
	ev.scan(to.start)

	r.remembered = r.remembered[:0]
	dead := r.sweepFinals(ev)
	r.runFinalizers(dead)

	before := r.major.used() + r.minor.used()
	if r.cfg.Poison {
		r.poison(r.minor.start, r.minor.ptr)
		r.poison(r.major.start, r.major.ptr)
	}
	r.minor.ptr = r.minor.start
	old := r.major
	old.ptr = old.start
	r.major = to
	r.reserve = old

	r.stats.MajorCollections++

	r.log.Debug("major collection",
		zap.Uint32("before_bytes", before),
		zap.Uint32("live_bytes", r.major.used()),
		zap.Int("finalized", len(dead)),
		zap.Duration("took", time.Since(start)))
}

// sweepFinals updates tracked finalizable blocks that survived and returns
// the ones that died. Only blocks in the collected spaces are examined.
func (r *Runtime) sweepFinals(ev *evacuator) []finalEntry {
	var dead []finalEntry
	kept := r.finals[:0]
	for _, f := range r.finals {
		if !ev.inFrom(f.v.Pointer()) {
			kept = append(kept, f)
			continue
		}
		if nv, ok := ev.isForwarded(f.v); ok {
			f.v = nv
			kept = append(kept, f)
			continue
		}
		dead = append(dead, f)
	}
	for i := len(kept); i < len(r.finals); i++ {
		r.finals[i] = finalEntry{}
	}
	r.finals = kept
	return dead
}

// runFinalizers calls each finalizer once on its dead block, whose memory
// is still intact at this point. Finalizers must not allocate.
func (r *Runtime) runFinalizers(dead []finalEntry) {
	if len(dead) == 0 {
		return
	}
	r.inFinalizers = true
	defer func() { r.inFinalizers = false }()
	for _, f := range dead {
		r.runFinalizer(f)
	}
	r.stats.FinalizersRun += len(dead)
}

func (r *Runtime) runFinalizer(f finalEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("finalizer panicked", zap.Any("panic", rec))
		}
	}()
	f.fn(r, f.v)
}

var poisonChunk = func() []byte {
	b := make([]byte, 4096)
	for i := 0; i < len(b); i += 8 {
		binary.LittleEndian.PutUint64(b[i:], poisonWord)
	}
	return b
}()

func (r *Runtime) poison(from, to uint32) {
	for p := from; p < to; {
		n := to - p
		if n > uint32(len(poisonChunk)) {
			n = uint32(len(poisonChunk))
		}
		if err := r.mem.Write(p, poisonChunk[:n]); err != nil {
			panic(errors.Wrap(errors.PhaseRuntime, errors.KindOutOfBounds, err, "poison"))
		}
		p += n
	}
}

// Collect runs a minor collection, or a full one when full is set.
func (r *Runtime) Collect(full bool) {
	r.assertLocked("Collect")
	if full {
		r.fullCollection()
		return
	}
	r.minorCollection()
}
