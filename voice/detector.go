// Package voice decides when a candidate has finished speaking.
//
// A Detector is a three-state switch. While the interviewer audio plays it
// ignores the microphone. Otherwise it watches level samples taken at a fixed
// interval and ends the user's turn after a run of silence.
package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	AISpeaking
	UserSpeaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AISpeaking:
		return "ai_speaking"
	case UserSpeaking:
		return "user_speaking"
	default:
		return "unknown"
	}
}

type Config struct {
	SampleInterval  time.Duration
	Threshold       float64 // dBFS; samples at or above count as speech
	SilenceDuration time.Duration
	MinSpeech       time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval:  100 * time.Millisecond,
		Threshold:       -50,
		SilenceDuration: 1500 * time.Millisecond,
		MinSpeech:       300 * time.Millisecond,
	}
}

type Detector struct {
	cfg Config

	mu           sync.Mutex
	state        State
	speechStart  time.Time
	silenceSince time.Time
	restarts     int

	// Callbacks run on the sampling goroutine, never under the lock.
	OnSpeechStart func()
	OnTurnEnd     func(speech time.Duration)
	OnStateChange func(from, to State)
}

func NewDetector(cfg Config) *Detector {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultConfig().SampleInterval
	}
	return &Detector{cfg: cfg, state: Idle}
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Detector) Restarts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restarts
}

// Sample feeds one level reading taken at the given time
func (d *Detector) Sample(level float64, at time.Time) {
	var fire []func()

	d.mu.Lock()
	switch d.state {
	case AISpeaking:
		// microphone picks up the interviewer; ignore it
	case Idle:
		if level >= d.cfg.Threshold {
			d.speechStart = at
			d.silenceSince = time.Time{}
			fire = append(fire, d.transition(UserSpeaking))
			if d.OnSpeechStart != nil {
				fire = append(fire, d.OnSpeechStart)
			}
		}
	case UserSpeaking:
		if level >= d.cfg.Threshold {
			d.silenceSince = time.Time{}
			break
		}
		if d.silenceSince.IsZero() {
			d.silenceSince = at
		}
		if at.Sub(d.silenceSince) < d.cfg.SilenceDuration {
			break
		}
		speech := d.silenceSince.Sub(d.speechStart)
		fire = append(fire, d.transition(Idle))
		if speech < d.cfg.MinSpeech {
			slog.Debug("Discarding short utterance", "speech_ms", speech.Milliseconds())
		} else if d.OnTurnEnd != nil {
			cb := d.OnTurnEnd
			fire = append(fire, func() { cb(speech) })
		}
	}
	d.mu.Unlock()

	for _, f := range fire {
		if f != nil {
			f()
		}
	}
}

// AIStarted marks the start of interviewer playback; any speech in progress is dropped
func (d *Detector) AIStarted() {
	d.mu.Lock()
	f := d.transition(AISpeaking)
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

// AIFinished hands the floor back to the candidate
func (d *Detector) AIFinished() {
	d.mu.Lock()
	var f func()
	if d.state == AISpeaking {
		f = d.transition(Idle)
	}
	d.mu.Unlock()
	if f != nil {
		f()
	}
}

// RecognizerError records a speech recognizer failure and reports whether
// the recognizer should be restarted. It always should.
func (d *Detector) RecognizerError(reason string) bool {
	d.mu.Lock()
	d.restarts++
	n := d.restarts
	d.mu.Unlock()
	slog.Warn("Speech recognizer error, restarting", "reason", reason, "restarts", n)
	return true
}

// Run samples level every SampleInterval until ctx is done
func (d *Detector) Run(ctx context.Context, level func() float64) {
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Sample(level(), now)
		}
	}
}

// transition must be called with mu held. It returns the state callback to fire.
func (d *Detector) transition(to State) func() {
	from := d.state
	if from == to {
		return nil
	}
	d.state = to
	if d.OnStateChange == nil {
		return nil
	}
	cb := d.OnStateChange
	return func() { cb(from, to) }
}
