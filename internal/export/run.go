package export

import (
	"errors"
	"fmt"
	"log"

	"github.com/banshee-data/sigvault/internal/container"
	"github.com/banshee-data/sigvault/internal/series"
)

// SourceReadError reports a source file that could not be read or
// parsed. The filename travels with the error so a job with many sources
// points at the defective one.
type SourceReadError struct {
	File string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source %s: %v", e.File, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// Run executes a validated job: creates the container, reads each source
// once, and writes every mapping in declared order. The first error
// aborts the job; there is no retry and no partial-success reporting.
// The container handle is closed on success and failure alike, and a
// close failure after otherwise clean writes surfaces as the job error.
func Run(job *Job) (err error) {
	c, cerr := container.Create(job.Output.Filename)
	if cerr != nil {
		return cerr
	}
	defer func() {
		closeErr := c.Close()
		if err == nil {
			err = closeErr
		}
	}()

	for i := range job.Datasets {
		if err := runSource(c, &job.Datasets[i]); err != nil {
			return err
		}
	}
	return nil
}

func runSource(c *container.Container, src *SourceSpec) error {
	source, ok := Lookup(src.DataType)
	if !ok {
		return configErrorf("unknown data_type %q", src.DataType)
	}
	log.Printf("reading %s source %s", src.DataType, src.Filename)

	switch source.Kind {
	case KindSignal:
		ds, err := source.ReadSignal(src.Filename)
		if err != nil {
			return &SourceReadError{File: src.Filename, Err: err}
		}
		return writeSignalMaps(c, src, ds)

	case KindEvents:
		table, err := source.ReadEvents(src.Filename)
		if err != nil {
			return &SourceReadError{File: src.Filename, Err: err}
		}
		for i := range src.Maps {
			m := &src.Maps[i]
			log.Printf("writing event table %s (%d events)", m.Path, len(table.Events))
			if err := c.WriteEventTable(m.Path, table); err != nil {
				return err
			}
			if err := writePathMeta(c, m); err != nil {
				return err
			}
		}
		return nil

	case KindText:
		text, err := source.ReadText(src.Filename)
		if err != nil {
			return &SourceReadError{File: src.Filename, Err: err}
		}
		for i := range src.Maps {
			m := &src.Maps[i]
			log.Printf("writing text blob %s (%d bytes)", m.Path, len(text))
			if err := c.WriteText(m.Path, text); err != nil {
				return err
			}
			if err := writePathMeta(c, m); err != nil {
				return err
			}
		}
		return nil
	}
	return configErrorf("data_type %q has unknown kind", src.DataType)
}

// writeSignalMaps writes one dataset to every mapping that names it. The
// wildcard is resolved once per mapping, in place, so metadata groups and
// later passes see the concrete channel list.
func writeSignalMaps(c *container.Container, src *SourceSpec, ds series.Dataset) error {
	for i := range src.Maps {
		m := &src.Maps[i]
		resolved, err := series.ExpandWildcard(m.Channels, ds)
		if err != nil {
			// A source with no time axis cannot be laid out, but it
			// must not sink the rest of the job.
			if errors.Is(err, series.ErrMissingTimeAxis) {
				log.Printf("warning: %s: %v, skipping map %s", src.Filename, err, m.Path)
				continue
			}
			return err
		}
		m.Channels = resolved

		log.Printf("writing %s (%d channels, shared=%v)", m.Path, len(resolved), m.SharedGroup)
		if err := c.WriteChannelGroup(m.Path, ds, resolved, m.SharedGroup); err != nil {
			return err
		}

		if len(m.Meta) == 0 {
			continue
		}
		groups := make([]container.MetaGroup, len(m.Meta))
		for g, mg := range m.Meta {
			groups[g] = container.MetaGroup{
				Channels: mg.Channels,
				Info:     infoMeta(mg.Info),
			}
		}
		if err := c.WriteMetadata(m.Path, groups, resolved); err != nil {
			return err
		}
	}
	return nil
}

// writePathMeta attaches metadata directly at the mapping path. Event
// tables and text blobs have no channel set, so meta groups collapse
// onto the path itself.
func writePathMeta(c *container.Container, m *Mapping) error {
	for _, mg := range m.Meta {
		if err := c.WriteAttributes(m.Path, infoMeta(mg.Info)); err != nil {
			return err
		}
	}
	return nil
}

// infoMeta converts validated job info values to metadata values. JSON
// numbers always arrive as float64.
func infoMeta(info map[string]any) series.Meta {
	meta := make(series.Meta, len(info))
	for k, v := range info {
		switch v := v.(type) {
		case string:
			meta[k] = series.StringValue(v)
		case float64:
			meta[k] = series.FloatValue(v)
		}
	}
	return meta
}
