package link

import "sync/atomic"

// State is the lifecycle state of a Link.
type State uint32

const (
	StateClosed State = iota
	StateClosing
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateClosing:
		return "closing"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State {
	return State(st.state.Load())
}

func (st *atomicState) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *atomicState) IsOpen() bool {
	return st.Get() == StateOpen
}

func (st *atomicState) IsClosed() bool {
	return st.Get() == StateClosed
}

// ToOpening succeeds only from the closed state.
func (st *atomicState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(StateClosed), uint32(StateOpening))
}

func (st *atomicState) ToOpen() bool {
	if st.IsOpen() {
		return true
	}

	return st.state.CompareAndSwap(uint32(StateOpening), uint32(StateOpen))
}

// ToClosing succeeds from the open or opening state.
func (st *atomicState) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(StateOpen), uint32(StateClosing)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(StateOpening), uint32(StateClosing))
}

func (st *atomicState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(StateClosing), uint32(StateClosed))
}
