package exec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PageSize is the linear-memory page granularity. Requested sizes round up
// to whole pages.
const PageSize = 64 * 1024

// Memory is one execution's private linear memory. Addresses wrap modulo the
// memory size instead of trapping, so any computed offset is a usable
// address.
type Memory struct {
	data []byte
}

// NewMemory builds a memory template from the configuration. Preloaded
// blocks must fit inside the configured pages.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.Pages < 0 {
		return nil, fmt.Errorf("memory pages must be >= 0")
	}
	m := &Memory{data: make([]byte, cfg.Pages*PageSize)}
	for i, block := range cfg.Preload {
		if block.Offset < 0 || block.Offset+len(block.Bytes) > len(m.data) {
			return nil, fmt.Errorf("preload block %d ([%d, %d)) does not fit in %d bytes of memory", i, block.Offset, block.Offset+len(block.Bytes), len(m.data))
		}
		copy(m.data[block.Offset:], block.Bytes)
	}
	return m, nil
}

// Copy returns an independently mutable copy of the memory.
func (m *Memory) Copy() *Memory {
	out := &Memory{data: make([]byte, len(m.data))}
	copy(out.data, m.data)
	return out
}

// Size returns the memory size in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

func (m *Memory) wrap(offset int64, width int) int {
	size := int64(len(m.data))
	at := offset % size
	if at < 0 {
		at += size
	}
	// A read or write straddling the end wraps to the start.
	if at+int64(width) > size {
		at = 0
	}
	return int(at)
}

// LoadUint64 reads width bytes (little-endian, zero-extended) at the wrapped
// offset. Zero-size memory always reads zero.
func (m *Memory) LoadUint64(offset int64, width int) uint64 {
	if len(m.data) == 0 {
		return 0
	}
	at := m.wrap(offset, width)
	var buf [8]byte
	copy(buf[:], m.data[at:at+width])
	return binary.LittleEndian.Uint64(buf[:])
}

// StoreUint64 writes the low width bytes of v (little-endian) at the wrapped
// offset.
func (m *Memory) StoreUint64(offset int64, v uint64, width int) {
	if len(m.data) == 0 {
		return
	}
	at := m.wrap(offset, width)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(m.data[at:at+width], buf[:width])
}

// LoadFloat64 reads an f64 at the wrapped offset.
func (m *Memory) LoadFloat64(offset int64) float64 {
	return math.Float64frombits(m.LoadUint64(offset, 8))
}

// StoreFloat64 writes an f64 at the wrapped offset.
func (m *Memory) StoreFloat64(offset int64, v float64) {
	m.StoreUint64(offset, math.Float64bits(v), 8)
}

// LoadFloat32 reads an f32 at the wrapped offset.
func (m *Memory) LoadFloat32(offset int64) float32 {
	return math.Float32frombits(uint32(m.LoadUint64(offset, 4)))
}

// StoreFloat32 writes an f32 at the wrapped offset.
func (m *Memory) StoreFloat32(offset int64, v float32) {
	m.StoreUint64(offset, uint64(math.Float32bits(v)), 4)
}
