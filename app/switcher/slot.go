package switcher

import (
	"context"

	"tombola/apperror"
)

// slot is the orchestrator's view of one camera. Only the consumer
// goroutine touches it while armed.
type slot struct {
	id        int
	recording bool
	// stopped is set once a stop has been issued since the last start,
	// whatever the outcome, which is what allows the save to follow.
	stopped bool
}

func (s *Switcher) installed(id int) bool {
	return id >= 1 && id <= s.conf.Camera.Qty
}

func (s *Switcher) slot(id int) *slot {
	return &s.slots[id-1]
}

func (s *Switcher) refuse(id int, msg string) {
	err := apperror.InvalidState.SetMessage(msg)
	s.log.LogWarning(err, msg, "camera", id)
}

func (s *Switcher) startSlot(ctx context.Context, id int) {
	if !s.installed(id) {
		s.cams.StartRecording(ctx, id)
		return
	}
	sl := s.slot(id)
	if sl.recording {
		s.refuse(id, "start_recording: recording is already in progress")
		return
	}
	if s.cams.StartRecording(ctx, id).OK() {
		sl.recording = true
		sl.stopped = false
	}
}

func (s *Switcher) stopSlot(ctx context.Context, id int) {
	if !s.installed(id) {
		s.cams.StopRecording(ctx, id)
		return
	}
	sl := s.slot(id)
	if !sl.recording {
		s.refuse(id, "stop_recording: recording is already stopped")
		return
	}
	// The finished take keeps the name it started with; whatever records
	// next is named from now.
	s.pending = s.take
	s.take = s.filename()

	o := s.cams.StopRecording(ctx, id)
	sl.stopped = true
	if o.OK() {
		sl.recording = false
	}
}

func (s *Switcher) flushSlot(ctx context.Context, id int) {
	if !s.installed(id) {
		s.cams.Flush(ctx, id)
		return
	}
	if s.slot(id).recording {
		s.refuse(id, "flush: camera is recording")
		return
	}
	s.cams.Flush(ctx, id)
}

func (s *Switcher) saveSlot(ctx context.Context, id int) {
	if !s.installed(id) {
		s.cams.Save(ctx, id, s.filename())
		return
	}
	sl := s.slot(id)
	if sl.recording && !sl.stopped {
		s.refuse(id, "file_save: recording is in progress so cannot save the file")
		return
	}
	name := s.pending
	s.pending = ""
	if name == "" {
		name = s.filename()
	}
	s.cams.Save(ctx, id, name)
}
