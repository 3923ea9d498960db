package derive

import (
	"sync"

	"github.com/wippyai/mlbridge/value"
)

const (
	// Pool limits to prevent memory bloat
	poolMaxFields  = 256
	poolInitFields = 8
)

// field buffer pool for encoding blocks
var fieldPool = sync.Pool{
	New: func() any {
		buf := make([]value.Value, 0, poolInitFields)
		return &buf
	},
}

func getFields(n int) *[]value.Value {
	buf := fieldPool.Get().(*[]value.Value)
	if cap(*buf) < n {
		*buf = make([]value.Value, n)
	}
	*buf = (*buf)[:n]
	for i := range *buf {
		(*buf)[i] = value.Unit
	}
	return buf
}

func putFields(buf *[]value.Value) {
	if buf == nil || cap(*buf) > poolMaxFields {
		return // reject oversized
	}
	*buf = (*buf)[:0]
	fieldPool.Put(buf)
}
