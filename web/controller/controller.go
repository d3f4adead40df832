package controller

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"tombola/apperror"
	"tombola/config"
	"tombola/logger"
	"tombola/models"
	"tombola/web/helper"
)

// Service is what the HTTP surface needs from the application.
type Service interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	DrumRPM(ctx context.Context) (float64, error)
	SetDrumRPM(ctx context.Context, rpm float64) (float64, error)
	Settings() []config.Setting
	Reconfigure(key, value string) error
	AppStatus(ctx context.Context) *models.Status
}

type Controller struct {
	logger *logger.Logger
	app    Service
}

func NewController(app Service, logger *logger.Logger) *Controller {
	return &Controller{
		app:    app,
		logger: logger,
	}
}

func (c *Controller) StartRecording(w http.ResponseWriter, r *http.Request) {
	c.logger.LogInfo("start recording request received")

	if err := c.app.StartRecording(r.Context()); err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, c.app.AppStatus(r.Context()))
}

func (c *Controller) StopRecording(w http.ResponseWriter, r *http.Request) {
	c.logger.LogInfo("stop recording request received")

	if err := c.app.StopRecording(r.Context()); err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, c.app.AppStatus(r.Context()))
}

func (c *Controller) GetDrumSpeed(w http.ResponseWriter, r *http.Request) {
	rpm, err := c.app.DrumRPM(r.Context())

	if err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, models.DrumSpeed{RPM: &rpm})
}

func (c *Controller) SetDrumSpeed(w http.ResponseWriter, r *http.Request) {
	var p models.DrumSpeed

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.RPM == nil {
		c.logger.LogWarning(err, "Error getting rpm from request")
		helper.ReturnFailure(w, apperror.InvalidRequest)
		return
	}

	rpm, err := c.app.SetDrumRPM(r.Context(), *p.RPM)

	if err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, models.DrumSpeed{RPM: &rpm})
}

func (c *Controller) ListSettings(w http.ResponseWriter, _ *http.Request) {
	helper.ReturnSuccess(w, c.app.Settings())
}

func (c *Controller) ChangeSetting(w http.ResponseWriter, r *http.Request) {
	var p models.SettingChange

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Key == "" {
		c.logger.LogWarning(err, "Error getting setting from request")
		helper.ReturnFailure(w, apperror.InvalidRequest)
		return
	}

	if err := c.app.Reconfigure(p.Key, p.Value); err != nil {
		helper.ReturnFailure(w, err)
		return
	}

	helper.ReturnSuccess(w, c.app.Settings())
}

func (c *Controller) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	c.logger.LogDebug("fetching device status")
	helper.ReturnSuccess(w, c.app.AppStatus(r.Context()))
}
