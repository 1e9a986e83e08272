package storage

import (
	"sync"

	"mit.edu/dsg/heapdb/common"
)

// HeapPage Layout:
// header Bitmap (ceil(numSlots/8) bytes) | numSlots fixed-size tuple slots | zero padding
//
// Each slot holds one tuple of the table's TupleDesc; bit i of the header says whether slot i is
// in use. The number of slots is the largest n for which n tuples plus n header bits fit in a page:
// floor(pageSize*8 / (tupleSize*8 + 1)).
type HeapPage struct {
	pid      common.PageID
	desc     *TupleDesc
	pageSize int
	numSlots int

	mu       sync.RWMutex
	header   []byte
	tuples   []*Tuple
	dirty    bool
	dirtyTid common.TransactionID
}

// slotsPerPage returns how many tuples of tupleSize bytes fit on a page of pageSize bytes.
func slotsPerPage(pageSize, tupleSize int) int {
	return (pageSize * 8) / (tupleSize*8 + 1)
}

func headerSize(numSlots int) int {
	return (numSlots + 7) / 8
}

// EmptyPageData returns the image of a page with no tuples in it.
func EmptyPageData(pageSize int) []byte {
	return make([]byte, pageSize)
}

// NewHeapPage parses a page image read from disk. len(data) is taken as the page size.
func NewHeapPage(pid common.PageID, data []byte, desc *TupleDesc) (*HeapPage, error) {
	pageSize := len(data)
	numSlots := slotsPerPage(pageSize, desc.Size())
	if numSlots == 0 {
		return nil, common.NewError(common.IllegalArgumentError,
			"a %d-byte tuple does not fit on a %d-byte page", desc.Size(), pageSize)
	}

	hp := &HeapPage{
		pid:      pid,
		desc:     desc,
		pageSize: pageSize,
		numSlots: numSlots,
		header:   make([]byte, headerSize(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}
	copy(hp.header, data)

	bitmap := hp.bitmap()
	offset := len(hp.header)
	for slot := 0; slot < numSlots; slot++ {
		if bitmap.LoadBit(slot) {
			rid := common.RecordID{PageID: pid, Slot: int32(slot)}
			hp.tuples[slot] = ReadTuple(desc, data[offset:offset+desc.Size()], rid)
		}
		offset += desc.Size()
	}
	return hp, nil
}

func (hp *HeapPage) bitmap() Bitmap {
	return AsBitmap(hp.header, hp.numSlots)
}

func (hp *HeapPage) ID() common.PageID {
	return hp.pid
}

// NumSlots returns the number of tuple slots on this page.
func (hp *HeapPage) NumSlots() int {
	return hp.numSlots
}

// NumEmptySlots returns the number of slots not currently holding a tuple.
func (hp *HeapPage) NumEmptySlots() int {
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	return hp.numSlots - hp.bitmap().Count()
}

// IsSlotUsed reports whether slot i holds a tuple. Out-of-range slots are reported as unused.
func (hp *HeapPage) IsSlotUsed(i int) bool {
	if i < 0 || i >= hp.numSlots {
		return false
	}
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	return hp.bitmap().LoadBit(i)
}

// PageData serializes the page back into its on-disk image.
func (hp *HeapPage) PageData() []byte {
	hp.mu.RLock()
	defer hp.mu.RUnlock()

	data := make([]byte, hp.pageSize)
	copy(data, hp.header)
	offset := len(hp.header)
	for _, t := range hp.tuples {
		if t != nil {
			t.WriteTo(data[offset : offset+hp.desc.Size()])
		}
		offset += hp.desc.Size()
	}
	return data
}

// InsertTuple stores t in the first free slot and sets its RecordID accordingly.
func (hp *HeapPage) InsertTuple(t *Tuple) error {
	if !hp.desc.Equals(t.Desc()) {
		return common.NewError(common.IllegalArgumentError,
			"tuple schema %s does not match page schema %s", t.Desc(), hp.desc)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()
	bitmap := hp.bitmap()
	slot := bitmap.FindFirstZero()
	if slot == -1 {
		return common.NewError(common.IllegalArgumentError, "%s is full", hp.pid)
	}
	bitmap.SetBit(slot, true)
	rid := common.RecordID{PageID: hp.pid, Slot: int32(slot)}
	t.SetRID(rid)
	hp.tuples[slot] = t.Copy()
	return nil
}

// DeleteTuple frees the slot named by t's RecordID.
func (hp *HeapPage) DeleteTuple(t *Tuple) error {
	rid := t.RID()
	if rid.PageID != hp.pid {
		return common.NewError(common.IllegalArgumentError, "tuple %s is not on %s", rid, hp.pid)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()
	slot := int(rid.Slot)
	if slot < 0 || slot >= hp.numSlots || !hp.bitmap().LoadBit(slot) {
		return common.NewError(common.IllegalArgumentError, "slot %d of %s is already empty", slot, hp.pid)
	}
	hp.bitmap().SetBit(slot, false)
	hp.tuples[slot] = nil
	return nil
}

// Iterator returns a cursor over copies of the tuples present when it is called, in slot order.
// Changing a returned tuple does not change the page.
func (hp *HeapPage) Iterator() TupleIterator {
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	live := make([]*Tuple, 0, hp.numSlots)
	for _, t := range hp.tuples {
		if t != nil {
			live = append(live, t.Copy())
		}
	}
	return &sliceTupleIterator{tuples: live}
}

func (hp *HeapPage) IsDirty() (common.TransactionID, bool) {
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	return hp.dirtyTid, hp.dirty
}

func (hp *HeapPage) MarkDirty(dirty bool, tid common.TransactionID) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.dirty = dirty
	if dirty {
		hp.dirtyTid = tid
	} else {
		hp.dirtyTid = common.InvalidTransactionID
	}
}
