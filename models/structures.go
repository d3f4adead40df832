package models

type Status struct {
	Armed        bool           `json:"isArmed"`
	HardwareUp   bool           `json:"isHardwareUp"`
	Policy       string         `json:"policy"`
	RunID        string         `json:"runId,omitempty"`
	Started      string         `json:"started,omitempty"`
	ActiveCamera int            `json:"activeCamera"`
	Crossings    int            `json:"crossings"`
	Threshold    int            `json:"threshold"`
	Switchovers  int            `json:"switchovers"`
	Take         string         `json:"take,omitempty"`
	Cameras      []CameraStatus `json:"cameras"`
	DrumRPM      float64        `json:"drumRpm"`
	DiskUsage    float64        `json:"diskUsage"`
}

type CameraStatus struct {
	ID        int  `json:"id"`
	Installed bool `json:"isInstalled"`
	Recording bool `json:"isRecording"`
}

type DrumSpeed struct {
	RPM *float64 `json:"rpm"`
}

type SettingChange struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
