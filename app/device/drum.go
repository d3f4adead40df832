package device

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
)

const (
	targetDrum   = "drum"
	ActionSetRPM = "setRPM"
	ActionGetRPM = "getRPM"
)

type setRPMRequest struct {
	SetRPM float64 `json:"setrpm"`
}

type getRPMRequest struct {
	RPM bool `json:"rpm"`
}

type rpmResponse struct {
	RPM *float64 `json:"rpm"`
}

// SetDrumRPM returns the requested speed when the controller accepted it
// and 0.0 otherwise.
func (c *Client) SetDrumRPM(ctx context.Context, rpm float64) (float64, Outcome) {
	o := c.do(ctx, http.MethodPost, c.drumURL, setRPMRequest{SetRPM: rpm}, c.drumTimeout)
	c.report(targetDrum, ActionSetRPM, o, "rpm", rpm)
	if !o.OK() {
		return 0, o
	}
	return rpm, o
}

// GetDrumRPM returns the measured speed, or 0.0 when the call did not
// succeed or the reply carried no rpm.
func (c *Client) GetDrumRPM(ctx context.Context) (float64, Outcome) {
	o := c.do(ctx, http.MethodPost, c.drumURL, getRPMRequest{RPM: true}, c.drumTimeout)
	if o.OK() {
		var resp rpmResponse
		if err := json.Unmarshal(o.Body, &resp); err != nil {
			o = Outcome{Kind: Malformed, StatusCode: o.StatusCode, Body: o.Body, Err: err}
		} else if resp.RPM == nil {
			o = Outcome{Kind: Malformed, StatusCode: o.StatusCode, Body: o.Body, Err: errors.New("response has no rpm field")}
		} else {
			c.report(targetDrum, ActionGetRPM, o, "rpm", *resp.RPM)
			return *resp.RPM, o
		}
	}

	c.report(targetDrum, ActionGetRPM, o)
	return 0, o
}
