// Package alert decides when aggregate CPU usage warrants a warning and when
// a desktop notification is due.
package alert

import (
	"fmt"
	"time"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

const (
	// PreWarningRatio places the pre-warning band below the threshold.
	PreWarningRatio = 0.8
	// ReminderInterval is the minimum gap between notifications for an
	// unchanged condition.
	ReminderInterval = 60 * time.Second
)

// Level is the display severity derived from an AlertState.
type Level int

const (
	Normal Level = iota
	PreWarning
	Warning
)

func (l Level) String() string {
	switch l {
	case PreWarning:
		return "pre-warning"
	case Warning:
		return "warning"
	default:
		return "normal"
	}
}

// LevelOf returns the severity of s. Warning wins over pre-warning.
func LevelOf(s model.AlertState) Level {
	switch {
	case s.WarningActive:
		return Warning
	case s.PreWarningActive:
		return PreWarning
	default:
		return Normal
	}
}

// Input is what one evaluation looks at.
type Input struct {
	AggregateCPU         float64
	Threshold            float64
	AlertsEnabled        bool
	NotificationsEnabled bool
	// Top is the highest-CPU process, nil when none was enumerated.
	Top *model.Process
}

// NewState is the startup state. The reminder clock starts at now.
func NewState(now time.Time) model.AlertState {
	return model.AlertState{LastNotification: now}
}

// Evaluate computes the next state from the previous one. It returns a
// notification when the state changed or the reminder interval elapsed
// while a warning or pre-warning holds.
func Evaluate(prev model.AlertState, in Input, now time.Time) (model.AlertState, *model.Notification) {
	warning := in.AggregateCPU > in.Threshold
	preWarning := !warning && in.AlertsEnabled && in.AggregateCPU > in.Threshold*PreWarningRatio

	next := model.AlertState{
		WarningActive:    warning,
		PreWarningActive: preWarning,
		LastNotification: prev.LastNotification,
	}

	if !in.NotificationsEnabled || (!warning && !preWarning) {
		return next, nil
	}
	changed := warning != prev.WarningActive || preWarning != prev.PreWarningActive
	if !changed && now.Sub(prev.LastNotification) < ReminderInterval {
		return next, nil
	}

	n := compose(warning, in)
	next.LastNotification = now
	return next, &n
}

func compose(warning bool, in Input) model.Notification {
	var top string
	if in.Top != nil {
		top = fmt.Sprintf("Highest CPU process: PID %d (%s) using %.1f%% CPU",
			in.Top.PID, in.Top.Name, in.Top.CPUPercent)
	} else {
		top = "No dominant process identified."
	}

	if warning {
		body := top
		if in.Top != nil {
			body += "\n\nPress 'k' in the activity monitor to terminate this process."
		}
		return model.Notification{
			Title:  fmt.Sprintf("CPU Usage Critical: %.1f%% (Threshold: %.1f%%)", in.AggregateCPU, in.Threshold),
			Body:   body,
			Urgent: true,
		}
	}
	return model.Notification{
		Title: fmt.Sprintf("CPU Usage Warning: %.1f%% (Threshold: %.1f%%)", in.AggregateCPU, in.Threshold),
		Body:  "CPU utilization is approaching threshold!\n" + top,
	}
}
