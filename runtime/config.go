package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/errors"
)

// MemoryKind selects what backs the heap.
type MemoryKind int

const (
	// MemoryWazero places the heap in wazero linear memory.
	MemoryWazero MemoryKind = iota
	// MemorySlice places the heap in a Go byte slice.
	MemorySlice
)

// Default heap sizes, in words.
const (
	DefaultMinorWords = 32 << 10
	DefaultMajorWords = 512 << 10
)

// Config holds configuration for runtime creation
type Config struct {
	// Logger overrides the package logger for this runtime.
	Logger *zap.Logger

	// MinorWords is the size of the minor heap in words.
	MinorWords int

	// MajorWords is the size of one major semispace in words. It must hold
	// at least two minor heaps.
	MajorWords int

	// Memory selects the heap backing.
	Memory MemoryKind

	// MemoryLimitPages caps wazero memory in 64KB pages. 0 means no cap
	// beyond what the heap needs.
	MemoryLimitPages uint32

	// Poison overwrites evacuated space after every collection so that
	// stale, unrooted values read garbage instead of plausible data.
	Poison bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() *Config {
	return &Config{
		MinorWords: DefaultMinorWords,
		MajorWords: DefaultMajorWords,
		Memory:     MemoryWazero,
	}
}

func (c *Config) validate() error {
	if c.MinorWords < 2*256 {
		return errors.InvalidInput(errors.PhaseLoad, "minor heap must hold at least 512 words")
	}
	if c.MajorWords < 2*c.MinorWords {
		return errors.InvalidInput(errors.PhaseLoad, "major semispace must hold at least two minor heaps")
	}
	if uint64(staticBytes)+uint64(c.MinorWords+2*c.MajorWords)*8 > 1<<32-1 {
		return errors.InvalidInput(errors.PhaseLoad, "heap does not fit in 32-bit offsets")
	}
	return nil
}
