// Package roots makes native-held values visible to the collector.
//
// A Chain is the list of local root frames of one execution context. Each
// Frame holds up to FrameSlots pointers to Go variables of type value.Value
// and links to the previous frame. The collector walks the chain on every
// collection, reads each slot, and writes back the relocated value, so a
// rooted variable is always current after an allocation returns.
//
// Frames are pushed and popped strictly LIFO. The usual pattern pops on
// every exit path, including panics:
//
//	var list, elem value.Value
//	defer roots.Enter(chain, &list, &elem).Leave()
//
// Leaving a frame that is not the head of its chain panics: an unbalanced
// chain would corrupt root scanning for every later call.
//
// Globals hold long-lived handles that survive any number of calls, for
// example a closure kept inside a Go struct. A Global must be released
// exactly once.
package roots
