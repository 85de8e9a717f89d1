package telemetry

import (
	"time"

	edgeview "github.com/e7canasta/orion-edgeview"
)

type statsMessage struct {
	State           string  `json:"state"`
	UptimeS         float64 `json:"uptime_s"`
	FramesCaptured  uint64  `json:"frames_captured"`
	FramesMalformed uint64  `json:"frames_malformed"`
	FramesDelivered uint64  `json:"frames_delivered"`
	EndOfStreamSent bool    `json:"eos_sent"`
	FPSReal         float64 `json:"fps_real"`
	FPSStdDev       float64 `json:"fps_stddev"`
	JitterMeanMS    float64 `json:"jitter_mean_ms"`
	Stable          bool    `json:"stable"`
}

func newStatsMessage(s edgeview.Stats) statsMessage {
	return statsMessage{
		State:           s.State.String(),
		UptimeS:         s.Uptime.Seconds(),
		FramesCaptured:  s.FramesCaptured,
		FramesMalformed: s.FramesMalformed,
		FramesDelivered: s.FramesDelivered,
		EndOfStreamSent: s.EndOfStreamSent,
		FPSReal:         s.FPSReal,
		FPSStdDev:       s.FPSStdDev,
		JitterMeanMS:    s.JitterMeanMS,
		Stable:          s.IsStable,
	}
}

type eventMessage struct {
	Kind      string    `json:"kind"`
	Source    string    `json:"source,omitempty"`
	OldState  string    `json:"old_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Category  string    `json:"category,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEventMessage(ev edgeview.Event, at time.Time) eventMessage {
	return eventMessage{
		Kind:      ev.Kind.String(),
		Source:    ev.Source,
		OldState:  ev.OldState,
		NewState:  ev.NewState,
		Message:   ev.Message,
		Category:  ev.Category,
		Timestamp: at.UTC(),
	}
}
