// Package psg extracts scored events from polysomnography XML event
// logs: the hypnogram (sleep stages on a 30-second epoch grid) and
// arousal events.
package psg

import (
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/sigvault/internal/series"
)

const eventTimeLayout = "2006-01-02T15:04:05.999999"

// epochSeconds is the scoring epoch length; consecutive hypnogram events
// are expected exactly one epoch apart.
const epochSeconds = 30

// stageValues maps scored stage names onto the numeric hypnogram
// encoding used in exports.
var stageValues = map[string]float64{
	"SLEEP-MT":   -1,
	"SLEEP-S0":   -2,
	"SLEEP-REM":  -3,
	"SLEEP-S1":   -4,
	"SLEEP-S2":   -5,
	"SLEEP-S3":   -6,
	"LIGHTS-OFF": 0,
	"LIGHTS-ON":  0,
}

// hypnogramStages are the event types exported into a hypnogram.
var hypnogramStages = []string{"SLEEP-MT", "SLEEP-REM", "SLEEP-S0", "SLEEP-S1", "SLEEP-S2", "SLEEP-S3"}

// Event is one scored PSG event.
type Event struct {
	Type     string
	Start    time.Time
	Stop     time.Time
	Duration float64 // seconds
}

type eventsXML struct {
	Events []struct {
		Type      string `xml:"Type"`
		StartTime string `xml:"StartTime"`
		StopTime  string `xml:"StopTime"`
	} `xml:"Events>Event"`
}

// ReadEvents parses the XML event log and keeps events whose type is in
// accepted. With checkSpacing, consecutive kept events more or less than
// one epoch apart are reported via the warn callback (scoring gaps are
// common enough that they must not abort an export). A nil warn reports
// through the stdlib logger.
func ReadEvents(fname string, accepted []string, checkSpacing bool, warn func(string)) ([]Event, error) {
	if warn == nil {
		warn = func(msg string) { log.Printf("warning: %s", msg) }
	}
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var doc eventsXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: parse events: %w", fname, err)
	}

	acceptedSet := make(map[string]bool, len(accepted))
	for _, t := range accepted {
		acceptedSet[t] = true
	}

	var out []Event
	var prevStart time.Time
	for _, e := range doc.Events {
		if !acceptedSet[e.Type] {
			continue
		}
		start, err := time.Parse(eventTimeLayout, e.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: parse event start %q: %w", fname, e.StartTime, err)
		}
		stop, err := time.Parse(eventTimeLayout, e.StopTime)
		if err != nil {
			return nil, fmt.Errorf("%s: parse event stop %q: %w", fname, e.StopTime, err)
		}
		if checkSpacing && !prevStart.IsZero() {
			if delta := start.Sub(prevStart).Seconds(); delta != epochSeconds {
				warn(fmt.Sprintf("%s: events %s apart, want %ds", fname, start.Sub(prevStart), epochSeconds))
			}
		}
		prevStart = start
		out = append(out, Event{
			Type:     e.Type,
			Start:    start,
			Stop:     stop,
			Duration: stop.Sub(start).Seconds(),
		})
	}
	return out, nil
}

// ReadHypnogram reads the sleep stages as one channel on the epoch grid:
// sample i is the numeric stage of epoch i, at time 30*i seconds from
// the first scored epoch.
func ReadHypnogram(fname string) (series.Dataset, error) {
	events, err := ReadEvents(fname, hypnogramStages, true, nil)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: no hypnogram events", fname)
	}

	samples := make([]float64, len(events))
	timeVec := make([]float64, len(events))
	for i, e := range events {
		samples[i] = stageValues[e.Type]
		timeVec[i] = float64(i * epochSeconds)
	}

	return series.Dataset{{
		Name:    "hypnogram",
		Samples: samples,
		Time:    timeVec,
		Meta:    series.NewMeta(events[0].Start, 1.0/epochSeconds),
	}}, nil
}

// ReadArousal reads arousal events as an irregular duration series: each
// sample is the event duration in seconds, placed at the event's offset
// from the first arousal. The event type itself is homogeneous by
// construction and is not exported as a channel.
func ReadArousal(fname string) (series.Dataset, error) {
	events, err := ReadEvents(fname, []string{"AROUSAL"}, false, nil)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: no arousal events", fname)
	}

	samples := make([]float64, len(events))
	timeVec := make([]float64, len(events))
	for i, e := range events {
		samples[i] = e.Duration
		timeVec[i] = e.Start.Sub(events[0].Start).Seconds()
	}

	return series.Dataset{{
		Name:    "duration",
		Samples: samples,
		Time:    timeVec,
		Meta:    series.NewMeta(events[0].Start, 0),
	}}, nil
}
