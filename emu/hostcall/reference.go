package hostcall

import "sync"

// ReferenceHost is an in-memory Host used by the demo CLI and by tests; it
// is not a production blockchain-state backend, only enough bookkeeping to
// exercise the syscall boundary end to end.
type ReferenceHost struct {
	mu sync.Mutex

	balances  map[Address]U256
	code      map[Address][]byte
	codeHash  map[Address]U256
	storage   map[Address]map[U256]U256
	transient map[Address]map[U256]U256
	blocks    map[uint64]U256
	height    uint64
	created   Address
}

// NewReferenceHost builds an empty reference host at block height 0.
func NewReferenceHost() *ReferenceHost {
	return &ReferenceHost{
		balances:  make(map[Address]U256),
		code:      make(map[Address][]byte),
		codeHash:  make(map[Address]U256),
		storage:   make(map[Address]map[U256]U256),
		transient: make(map[Address]map[U256]U256),
		blocks:    make(map[uint64]U256),
	}
}

// SetBalance/SetCode/SetBlock let a test or demo seed state before running.
func (h *ReferenceHost) SetBalance(addr Address, v U256) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.balances[addr] = v
}

func (h *ReferenceHost) SetCode(addr Address, code []byte, hash U256) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.code[addr] = code
	h.codeHash[addr] = hash
}

func (h *ReferenceHost) SetBlock(number uint64, hash U256) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks[number] = hash
	if number > h.height {
		h.height = number
	}
}

func (h *ReferenceHost) Balance(addr Address) U256 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balances[addr]
}

func (h *ReferenceHost) LoadCode(addr Address) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code[addr]
}

func (h *ReferenceHost) LoadCodeHash(addr Address) U256 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.codeHash[addr]
}

func (h *ReferenceHost) BlockNumber() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

func (h *ReferenceHost) BlockHash(number uint64) U256 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blocks[number]
}

func (h *ReferenceHost) SLoad(addr Address, key U256) (U256, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, ok := h.storage[addr]
	if !ok {
		return U256{}, true
	}
	v, ok := slot[key]
	return v, !ok
}

// SStore writes a slot and reports the 84-byte request echoed back with a
// one-byte cold/warm flag appended, matching the serialized-buffer
// convention used for this selector (spec §6).
func (h *ReferenceHost) SStore(addr Address, key, value U256) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, ok := h.storage[addr]
	if !ok {
		slot = make(map[U256]U256)
		h.storage[addr] = slot
	}
	_, existed := slot[key]
	slot[key] = value
	out := make([]byte, 85)
	copy(out[0:20], addr[:])
	kb := key.Bytes()
	copy(out[20:52], kb[:])
	vb := value.Bytes()
	copy(out[52:84], vb[:])
	if !existed {
		out[84] = 1
	}
	return out
}

func (h *ReferenceHost) TLoad(addr Address, key U256) U256 {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, ok := h.transient[addr]
	if !ok {
		return U256{}
	}
	return slot[key]
}

func (h *ReferenceHost) TStore(addr Address, key, value U256) {
	h.mu.Lock()
	defer h.mu.Unlock()
	slot, ok := h.transient[addr]
	if !ok {
		slot = make(map[U256]U256)
		h.transient[addr] = slot
	}
	slot[key] = value
}

func (h *ReferenceHost) LoadAccountDelegated(addr Address) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.code[addr]; ok {
		return 1
	}
	return 0
}

func (h *ReferenceHost) Selfdestruct(buf []byte) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(buf) < 20 {
		return nil
	}
	var addr Address
	copy(addr[:], buf[0:20])
	delete(h.balances, addr)
	delete(h.code, addr)
	delete(h.codeHash, addr)
	delete(h.storage, addr)
	return buf
}

func (h *ReferenceHost) ReturnCreateAddress() Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

// EVMOpcode answers the open EVM-opcode range with a no-op success; a real
// embedding host supplies the interpreter that gives this meaning.
func (h *ReferenceHost) EVMOpcode(selector uint64, buf []byte) ([]byte, bool) {
	return buf, false
}
