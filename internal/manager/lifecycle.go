package manager

import "sync"

// lifecycle guards the UNLOADED -> LOADING -> READY | FAILED transitions of
// one model handle. loadMu serializes construction; stateMu lets readiness
// probes observe state without blocking behind a multi-second load.
type lifecycle struct {
	loadMu  sync.Mutex
	stateMu sync.RWMutex
	state   State
	loadErr string
}

// ensure performs the load exactly once. Concurrent callers block on loadMu
// until the first caller commits READY or FAILED, then observe that state.
// FAILED is permanent: the stored error is surfaced on every later call
// until process restart, so a broken environment is not re-probed per request.
func (lc *lifecycle) ensure(load func() error) error {
	lc.loadMu.Lock()
	defer lc.loadMu.Unlock()
	switch lc.currentState() {
	case StateReady:
		return nil
	case StateFailed:
		return ErrModelUnavailable("model load failed: " + lc.currentErr())
	}
	lc.setState(StateLoading, "")
	if err := load(); err != nil {
		lc.setState(StateFailed, err.Error())
		return ErrModelUnavailable("model load failed: " + err.Error())
	}
	lc.setState(StateReady, "")
	return nil
}

func (lc *lifecycle) currentState() State {
	lc.stateMu.RLock()
	defer lc.stateMu.RUnlock()
	if lc.state == "" {
		return StateUnloaded
	}
	return lc.state
}

func (lc *lifecycle) currentErr() string {
	lc.stateMu.RLock()
	defer lc.stateMu.RUnlock()
	return lc.loadErr
}

func (lc *lifecycle) setState(s State, errMsg string) {
	lc.stateMu.Lock()
	lc.state = s
	lc.loadErr = errMsg
	lc.stateMu.Unlock()
}
