// Package run tracks the currently recording session.
package run

import (
	"sync"

	"github.com/motorsim/drivetrain/internal/model"
)

// Context holds the current run and track state
type Context struct {
	mu    sync.RWMutex
	Run   *model.Run
	Track *model.Track
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Run:   &model.Run{RunName: "No run loaded"},
		Track: &model.Track{TrackName: "No track loaded"},
	}
}

// GetRun returns the current run
func (rc *Context) GetRun() *model.Run {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.Run
}

// GetTrack returns the current track
func (rc *Context) GetTrack() *model.Track {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.Track
}

// SetRun sets the current run and track
func (rc *Context) SetRun(run *model.Run, track *model.Track) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Run = run
	rc.Track = track
}
