// Package neurone reads recordings made with a Bittium NeurOne device:
// the measurement protocol and session metadata (XML), the raw signal
// matrix, and the binary event log. Only single-session recordings
// (session phase 1) are supported.
package neurone

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Protocol describes one NeurOne recording: the channel names in physical
// sampling order plus session-level metadata.
type Protocol struct {
	Channels     []string
	SamplingRate float64
	TimeStart    time.Time
	TimeStop     time.Time
}

// sessionTimeLayout matches NeurOne session timestamps once the UTC
// offset suffix has been stripped.
const sessionTimeLayout = "2006-01-02T15:04:05.999999"

type protocolXML struct {
	Inputs []struct {
		PhysicalInputNumber int    `xml:"PhysicalInputNumber"`
		Name                string `xml:"Name"`
	} `xml:"TableInput"`
	Table struct {
		ActualSamplingFrequency float64 `xml:"ActualSamplingFrequency"`
	} `xml:"TableProtocol"`
}

type sessionXML struct {
	Session struct {
		StartDateTime string `xml:"StartDateTime"`
		StopDateTime  string `xml:"StopDateTime"`
	} `xml:"TableSession"`
}

// ReadProtocol parses Protocol.xml and Session.xml from the measurement
// directory. Channels are ordered by their physical input number, which is
// the order in which the device samples them and the column order of the
// signal matrix.
func ReadProtocol(dir string) (*Protocol, error) {
	rawProtocol, err := os.ReadFile(filepath.Join(dir, "Protocol.xml"))
	if err != nil {
		return nil, fmt.Errorf("read protocol: %w", err)
	}
	var proto protocolXML
	if err := xml.Unmarshal(rawProtocol, &proto); err != nil {
		return nil, fmt.Errorf("parse protocol: %w", err)
	}
	if len(proto.Inputs) == 0 {
		return nil, fmt.Errorf("protocol declares no inputs")
	}

	rawSession, err := os.ReadFile(filepath.Join(dir, "Session.xml"))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess sessionXML
	if err := xml.Unmarshal(rawSession, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	inputs := proto.Inputs
	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].PhysicalInputNumber < inputs[j].PhysicalInputNumber
	})
	channels := make([]string, len(inputs))
	for i, in := range inputs {
		channels[i] = in.Name
	}

	start, err := parseSessionTime(sess.Session.StartDateTime)
	if err != nil {
		return nil, fmt.Errorf("parse session start: %w", err)
	}
	stop, err := parseSessionTime(sess.Session.StopDateTime)
	if err != nil {
		return nil, fmt.Errorf("parse session stop: %w", err)
	}

	return &Protocol{
		Channels:     channels,
		SamplingRate: proto.Table.ActualSamplingFrequency,
		TimeStart:    start,
		TimeStop:     stop,
	}, nil
}

// parseSessionTime drops the device's UTC offset suffix and parses the
// remaining local wall-clock time. The offset is discarded on purpose: the
// exported time_start attribute is the local recording time.
func parseSessionTime(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '+'); i > 0 {
		s = s[:i]
	}
	return time.Parse(sessionTimeLayout, s)
}
