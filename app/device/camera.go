package device

import (
	"context"
	"fmt"
	"net/http"
)

const (
	ActionStart     = "startRecording"
	ActionStop      = "stopRecording"
	ActionFlush     = "flushRecording"
	ActionSave      = "startFilesave"
	ActionConfigure = "configure"
)

// CameraSettings is the recording setup pushed to a camera before a run.
type CameraSettings struct {
	RecMode     string `json:"recMode"`
	MaxFrames   int    `json:"recMaxFrames"`
	FramePeriod int64  `json:"framePeriod"`
}

type saveRequest struct {
	Filename string `json:"filename"`
	Device   string `json:"device"`
	Format   string `json:"format"`
}

func cameraTarget(id int) string {
	return fmt.Sprintf("camera%d", id)
}

// cameraURL returns the controller url for camera id, or false when that
// camera is not installed.
func (c *Client) cameraURL(id int) (string, bool) {
	if id < 1 || id > c.qty || id > len(c.cameras) {
		return "", false
	}
	return c.cameras[id-1], true
}

func (c *Client) cameraCall(ctx context.Context, id int, action, method, path string, payload any, extras ...any) Outcome {
	target := cameraTarget(id)
	base, ok := c.cameraURL(id)
	if !ok {
		o := Outcome{Kind: Skipped}
		c.report(target, action, o, extras...)
		return o
	}

	o := c.do(ctx, method, base+path, payload, c.cameraTimeout)
	c.report(target, action, o, extras...)
	return o
}

func (c *Client) StartRecording(ctx context.Context, id int) Outcome {
	return c.cameraCall(ctx, id, ActionStart, http.MethodGet, "/startRecording", nil)
}

func (c *Client) StopRecording(ctx context.Context, id int) Outcome {
	return c.cameraCall(ctx, id, ActionStop, http.MethodGet, "/stopRecording", nil)
}

// Flush discards whatever the camera still holds in its buffer.
func (c *Client) Flush(ctx context.Context, id int) Outcome {
	return c.cameraCall(ctx, id, ActionFlush, http.MethodGet, "/flushRecording", nil)
}

// Save asks the camera to write its buffer to storage under filename.
func (c *Client) Save(ctx context.Context, id int, filename string) Outcome {
	payload := saveRequest{
		Filename: filename,
		Device:   c.storage,
		Format:   c.format,
	}
	return c.cameraCall(ctx, id, ActionSave, http.MethodPost, "/startFilesave", payload, "filename", filename)
}

func (c *Client) Configure(ctx context.Context, id int, s CameraSettings) Outcome {
	return c.cameraCall(ctx, id, ActionConfigure, http.MethodPost, "/p", s,
		"rec_mode", s.RecMode, "max_frames", s.MaxFrames, "frame_period", s.FramePeriod)
}
