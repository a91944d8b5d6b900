package hal

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// FlashOp names a controller primitive for fault injection and accounting.
type FlashOp uint8

const (
	OpInit FlashOp = iota + 1
	OpErase
	OpVerifyErase
	OpProgram
	OpVerifyProgram
	OpRead
)

func (op FlashOp) String() string {
	switch op {
	case OpInit:
		return "init"
	case OpErase:
		return "erase"
	case OpVerifyErase:
		return "verify_erase"
	case OpProgram:
		return "program"
	case OpVerifyProgram:
		return "verify_program"
	case OpRead:
		return "read"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// SimFlash emulates an embedded NOR array with LPC55-style semantics:
// erased pages fault when read, and a page must be erased before it can be
// programmed again.
type SimFlash struct {
	mu        sync.Mutex
	mem       []byte
	pageBytes uint32
	erased    *bitset.BitSet
	cycles    []uint32
	ready     bool

	ops     map[FlashOp]int
	faults  map[FlashOp]error
	corrupt int
}

// NewSimFlash returns a factory-fresh device: every page erased.
func NewSimFlash(size, pageBytes uint32) (*SimFlash, error) {
	if pageBytes == 0 || size == 0 || size%pageBytes != 0 {
		return nil, fmt.Errorf("sim flash: size %d not a multiple of page size %d", size, pageBytes)
	}
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = ErasedByte
	}
	pages := uint(size / pageBytes)
	erased := bitset.New(pages)
	for p := uint(0); p < pages; p++ {
		erased.Set(p)
	}
	return newSimFlashOn(mem, pageBytes, erased), nil
}

func newSimFlashOn(mem []byte, pageBytes uint32, erased *bitset.BitSet) *SimFlash {
	return &SimFlash{
		mem:       mem,
		pageBytes: pageBytes,
		erased:    erased,
		cycles:    make([]uint32, uint32(len(mem))/pageBytes),
		ops:       make(map[FlashOp]int),
		faults:    make(map[FlashOp]error),
		corrupt:   -1,
	}
}

func (f *SimFlash) PageBytes() uint32 { return f.pageBytes }
func (f *SimFlash) SizeBytes() uint32 { return uint32(len(f.mem)) }

// FailNext makes the next call of op return err without touching the array.
func (f *SimFlash) FailNext(op FlashOp, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = err
}

// CorruptNextProgram flips the bits of byte i of the next programmed buffer
// so that the following program verification fails.
func (f *SimFlash) CorruptNextProgram(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrupt = i
}

// OpCount reports how many times op has been invoked.
func (f *SimFlash) OpCount(op FlashOp) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops[op]
}

// EraseCount reports the erase cycles consumed by the page containing addr.
func (f *SimFlash) EraseCount(addr uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := addr / f.pageBytes
	if int(p) >= len(f.cycles) {
		return 0
	}
	return f.cycles[p]
}

// PageErased reports whether the page containing addr is in the erased state.
func (f *SimFlash) PageErased(addr uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.erased.Test(uint(addr / f.pageBytes))
}

// Peek returns a copy of the raw array, bypassing the fault model.
func (f *SimFlash) Peek(addr, size uint32) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, size)
	copy(out, f.mem[addr:addr+size])
	return out
}

func (f *SimFlash) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enterLocked(OpInit); err != nil {
		return err
	}
	f.ready = true
	return nil
}

func (f *SimFlash) Erase(addr, size uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(OpErase); err != nil {
		return err
	}
	if err := checkPageRange(addr, size, f.pageBytes, f.SizeBytes()); err != nil {
		return err
	}
	for off := addr; off < addr+size; off += f.pageBytes {
		page := f.mem[off : off+f.pageBytes]
		for i := range page {
			page[i] = ErasedByte
		}
		p := off / f.pageBytes
		f.erased.Set(uint(p))
		f.cycles[p]++
	}
	return nil
}

func (f *SimFlash) VerifyErase(addr, size uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(OpVerifyErase); err != nil {
		return err
	}
	if err := checkRange(addr, size, f.SizeBytes()); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	first := addr / f.pageBytes
	last := (addr + size - 1) / f.pageBytes
	for p := first; p <= last; p++ {
		if !f.erased.Test(uint(p)) {
			return ErrNotErased
		}
	}
	return nil
}

func (f *SimFlash) Program(addr uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(OpProgram); err != nil {
		return err
	}
	size := uint32(len(data))
	if err := checkPageRange(addr, size, f.pageBytes, f.SizeBytes()); err != nil {
		return err
	}
	for off := addr; off < addr+size; off += f.pageBytes {
		if !f.erased.Test(uint(off / f.pageBytes)) {
			return fmt.Errorf("flash program at %d: %w", off, ErrProgramRequiresErase)
		}
	}
	copy(f.mem[addr:addr+size], data)
	if f.corrupt >= 0 && f.corrupt < len(data) {
		f.mem[addr+uint32(f.corrupt)] ^= 0xFF
	}
	f.corrupt = -1
	for off := addr; off < addr+size; off += f.pageBytes {
		f.erased.Clear(uint(off / f.pageBytes))
	}
	return nil
}

func (f *SimFlash) VerifyProgram(addr uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(OpVerifyProgram); err != nil {
		return err
	}
	if err := checkRange(addr, uint32(len(data)), f.SizeBytes()); err != nil {
		return err
	}
	for i, want := range data {
		at := addr + uint32(i)
		got := f.mem[at]
		if f.erased.Test(uint(at / f.pageBytes)) {
			return &MismatchError{Addr: at, Want: want, Got: ErasedByte}
		}
		if got != want {
			return &MismatchError{Addr: at, Want: want, Got: got}
		}
	}
	return nil
}

func (f *SimFlash) Read(addr uint32, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(OpRead); err != nil {
		return err
	}
	size := uint32(len(p))
	if err := checkRange(addr, size, f.SizeBytes()); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	for pg := addr / f.pageBytes; pg <= (addr+size-1)/f.pageBytes; pg++ {
		if f.erased.Test(uint(pg)) {
			return fmt.Errorf("flash read at %d: %w", pg*f.pageBytes, ErrAccessFault)
		}
	}
	copy(p, f.mem[addr:addr+size])
	return nil
}

func (f *SimFlash) enterLocked(op FlashOp) error {
	f.ops[op]++
	if err, ok := f.faults[op]; ok {
		delete(f.faults, op)
		return err
	}
	return nil
}

func (f *SimFlash) checkLocked(op FlashOp) error {
	if err := f.enterLocked(op); err != nil {
		return err
	}
	if !f.ready {
		return ErrNotInitialized
	}
	return nil
}
