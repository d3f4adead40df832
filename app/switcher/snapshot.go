package switcher

import "time"

type SlotState struct {
	ID        int  `json:"id"`
	Installed bool `json:"installed"`
	Recording bool `json:"recording"`
}

// Snapshot is a copy of the orchestrator state safe to read from any
// goroutine.
type Snapshot struct {
	State       string      `json:"state"`
	Policy      string      `json:"policy"`
	RunID       string      `json:"run_id,omitempty"`
	Started     time.Time   `json:"started"`
	Active      int         `json:"active_camera"`
	Crossings   int         `json:"crossings"`
	Threshold   int         `json:"threshold"`
	Switchovers int         `json:"switchovers"`
	Take        string      `json:"take,omitempty"`
	Slots       []SlotState `json:"slots"`
}

// publish must only be called by whoever currently owns the run state.
func (s *Switcher) publish() {
	snap := &Snapshot{
		State:       s.machine.Current(),
		Policy:      s.policy.Name(),
		RunID:       s.runID,
		Started:     s.started,
		Crossings:   s.count,
		Threshold:   s.policy.Threshold(),
		Switchovers: s.switchovers,
		Take:        s.take,
		Slots:       make([]SlotState, 0, len(s.slots)),
	}
	if snap.State == StateArmed {
		snap.Active = s.active
	}
	for _, sl := range s.slots {
		snap.Slots = append(snap.Slots, SlotState{
			ID:        sl.id,
			Installed: s.installed(sl.id),
			Recording: sl.recording,
		})
	}
	s.snapshot.Store(snap)
}

func (s *Switcher) Snapshot() Snapshot {
	return *s.snapshot.Load()
}
