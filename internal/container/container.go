// Package container materializes datasets into a self-describing
// hierarchical container file. Groups map to slash-delimited path
// segments and are created lazily; leaves are typed arrays (float64
// vectors, fixed-schema record tables, or text blobs); attributes attach
// scalar metadata to any group or leaf.
//
// The container is backed by SQLite with a fixed relational schema, so
// any environment with a SQLite driver can read an export without
// project-specific code.
package container

import (
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/sigvault/internal/neurone"
	"github.com/banshee-data/sigvault/internal/series"
)

//go:embed schema.sql
var schemaSQL string

// WriteError reports a failed container write: a path collision between
// incompatible kinds or an underlying storage failure. Always fatal for
// the running export job.
type WriteError struct {
	Path string
	Msg  string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("container write %q: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("container write %q: %s", e.Path, e.Msg)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a channel whose samples and time axis
// disagree in length, or a requested channel that the dataset does not
// contain. There is no partial-success mode: the export job aborts.
type ShapeMismatchError struct {
	Channel string
	Samples int
	Time    int
	Missing bool
}

func (e *ShapeMismatchError) Error() string {
	if e.Missing {
		return fmt.Sprintf("channel %q not present in dataset", e.Channel)
	}
	return fmt.Sprintf("channel %q: %d samples vs %d time points", e.Channel, e.Samples, e.Time)
}

// MetaGroup pairs a channel selector with attribute values to attach.
// Channels may be the wildcard, expanded against the channel set already
// resolved for the write.
type MetaGroup struct {
	Channels []string
	Info     series.Meta
}

// Container is a handle to one open container file. Writes become durable
// only after Close returns successfully.
type Container struct {
	*sql.DB
	path string
}

// Create opens a new container at path, truncating any existing file.
// Exporting always starts from an empty container; there is no append
// mode and no schema evolution across container versions.
func Create(path string) (*Container, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("truncate existing container: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply container schema: %w", err)
	}

	c := &Container{DB: db, path: path}
	info := map[string]string{
		"format":    "sigvault-container",
		"version":   "1",
		"export_id": uuid.NewString(),
		"created":   time.Now().UTC().Format(series.TimestampLayout),
	}
	for k, v := range info {
		if _, err := db.Exec(`INSERT INTO container_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			db.Close()
			return nil, fmt.Errorf("stamp container info: %w", err)
		}
	}
	return c, nil
}

// Path returns the filename the container was created at.
func (c *Container) Path() string { return c.path }

// Close flushes and releases the container handle.
func (c *Container) Close() error { return c.DB.Close() }

// WriteChannelGroup writes the requested channels of ds under path.
//
// With shared true, channels become sibling leaves and exactly one shared
// time-axis leaf is written at path/time, taken from the first matching
// record; later records' time axes and group metadata are discarded. The
// writer trusts the caller's classification that all channels in a shared
// group use one time base.
//
// With shared false, each channel becomes its own subgroup holding a
// private data leaf and time leaf, with metadata on the data leaf.
//
// Channels of ds not named in channels are ignored, so one dataset can be
// written to several paths with different subsets. A requested channel
// the dataset lacks, or a samples/time length mismatch, aborts the write.
func (c *Container) WriteChannelGroup(path string, ds series.Dataset, channels []string, shared bool) error {
	path = cleanPath(path)
	requested := make(map[string]bool, len(channels))
	for _, name := range channels {
		requested[name] = true
	}
	written := make(map[string]bool, len(channels))

	if shared {
		if err := c.ensureGroup(path); err != nil {
			return err
		}
		timeWritten := false
		metaWritten := false
		for _, ch := range ds {
			if !requested[ch.Name] {
				continue
			}
			if len(ch.Samples) != len(ch.Time) {
				return &ShapeMismatchError{Channel: ch.Name, Samples: len(ch.Samples), Time: len(ch.Time)}
			}
			leaf := path + "/" + ch.Name
			if err := c.createFloatLeaf(leaf, ch.Samples); err != nil {
				return err
			}
			if err := c.putAttributes(leaf, ch.Meta); err != nil {
				return err
			}
			if !timeWritten {
				if err := c.createFloatLeaf(path+"/"+series.TimeAxisName, ch.Time); err != nil {
					return err
				}
				timeWritten = true
			}
			if !metaWritten {
				if err := c.putAttributes(path, ch.Meta); err != nil {
					return err
				}
				metaWritten = true
			}
			written[ch.Name] = true
		}
	} else {
		for _, ch := range ds {
			if !requested[ch.Name] {
				continue
			}
			if len(ch.Samples) != len(ch.Time) {
				return &ShapeMismatchError{Channel: ch.Name, Samples: len(ch.Samples), Time: len(ch.Time)}
			}
			base := path + "/" + ch.Name
			if err := c.createFloatLeaf(base+"/data", ch.Samples); err != nil {
				return err
			}
			if err := c.createFloatLeaf(base+"/"+series.TimeAxisName, ch.Time); err != nil {
				return err
			}
			if err := c.putAttributes(base+"/data", ch.Meta); err != nil {
				return err
			}
			written[ch.Name] = true
		}
	}

	for _, name := range channels {
		if !written[name] {
			return &ShapeMismatchError{Channel: name, Missing: true}
		}
	}
	return nil
}

// WriteMetadata attaches the declared metadata groups under path. Each
// group's selector may be the wildcard, expanded against resolved (the
// channel set already resolved for the write); the expansion is a no-op
// for explicit lists. Every info key/value lands as an attribute at
// path/<channel>.
func (c *Container) WriteMetadata(path string, groups []MetaGroup, resolved []string) error {
	path = cleanPath(path)
	for _, g := range groups {
		names := g.Channels
		if len(names) == 1 && names[0] == series.Wildcard {
			names = resolved
		}
		for _, name := range names {
			if err := c.WriteAttributes(path+"/"+name, g.Info); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteAttributes attaches meta as attributes at owner, creating the
// group lazily when no leaf exists there yet.
func (c *Container) WriteAttributes(owner string, meta series.Meta) error {
	owner = cleanPath(owner)
	isLeaf, err := c.leafExists(owner)
	if err != nil {
		return &WriteError{Path: owner, Msg: "lookup leaf", Err: err}
	}
	if !isLeaf {
		if err := c.ensureGroup(owner); err != nil {
			return err
		}
	}
	return c.putAttributes(owner, meta)
}

// WriteEventTable materializes a decoded event table as one
// strongly-typed leaf at path, storing the table schema verbatim (field
// order and widths, including the derived time columns) next to the
// packed rows.
func (c *Container) WriteEventTable(path string, t *neurone.EventTable) error {
	path = cleanPath(path)
	schema := t.Schema()
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return &WriteError{Path: path, Msg: "encode table schema", Err: err}
	}

	rowSize := 0
	for _, f := range schema {
		rowSize += f.Size
	}
	payload := make([]byte, 0, rowSize*len(t.Events))
	for _, ev := range t.Events {
		payload = appendEventRow(payload, ev)
	}
	return c.createLeaf(path, "table", len(t.Events), string(schemaJSON), payload)
}

// WriteText materializes an opaque text blob at path. Metadata for a text
// leaf always applies to the whole blob; attach it with WriteAttributes.
func (c *Container) WriteText(path, text string) error {
	path = cleanPath(path)
	return c.createLeaf(path, "text", len(text), "", []byte(text))
}

// appendEventRow packs one event in schema column order.
func appendEventRow(buf []byte, ev neurone.Event) []byte {
	le := binary.LittleEndian
	for _, v := range []int32{ev.Revision, ev.RFU1, ev.Type, ev.SourcePort, ev.ChannelNumber, ev.Code} {
		buf = le.AppendUint32(buf, uint32(v))
	}
	for _, v := range []uint64{ev.StartSampleIndex, ev.StopSampleIndex, ev.DescriptionLength,
		ev.DescriptionOffset, ev.DataLength, ev.DataOffset} {
		buf = le.AppendUint64(buf, v)
	}
	buf = le.AppendUint64(buf, math.Float64bits(ev.StartTime))
	buf = le.AppendUint64(buf, math.Float64bits(ev.StopTime))
	return buf
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}

// ensureGroup creates path and all intermediate groups, failing when any
// prefix is already occupied by a leaf.
func (c *Container) ensureGroup(path string) error {
	if path == "" {
		return nil
	}
	segments := strings.Split(path, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		isLeaf, err := c.leafExists(prefix)
		if err != nil {
			return &WriteError{Path: prefix, Msg: "lookup leaf", Err: err}
		}
		if isLeaf {
			return &WriteError{Path: prefix, Msg: "cannot create group: path holds a leaf"}
		}
		if _, err := c.Exec(`INSERT OR IGNORE INTO groups (path) VALUES (?)`, prefix); err != nil {
			return &WriteError{Path: prefix, Msg: "create group", Err: err}
		}
	}
	return nil
}

func (c *Container) createFloatLeaf(path string, samples []float64) error {
	payload := make([]byte, 0, 8*len(samples))
	le := binary.LittleEndian
	for _, v := range samples {
		payload = le.AppendUint64(payload, math.Float64bits(v))
	}
	return c.createLeaf(path, "float64", len(samples), "", payload)
}

func (c *Container) createLeaf(path, kind string, length int, schemaJSON string, payload []byte) error {
	parent := ""
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		parent = path[:i]
	}
	if err := c.ensureGroup(parent); err != nil {
		return err
	}

	var exists int
	err := c.QueryRow(`SELECT COUNT(*) FROM groups WHERE path = ?`, path).Scan(&exists)
	if err != nil {
		return &WriteError{Path: path, Msg: "lookup group", Err: err}
	}
	if exists > 0 {
		return &WriteError{Path: path, Msg: "cannot create leaf: path holds a group"}
	}

	isLeaf, err := c.leafExists(path)
	if err != nil {
		return &WriteError{Path: path, Msg: "lookup leaf", Err: err}
	}
	if isLeaf {
		return &WriteError{Path: path, Msg: "leaf already exists"}
	}

	var schema any
	if schemaJSON != "" {
		schema = schemaJSON
	}
	if _, err := c.Exec(
		`INSERT INTO leaves (path, kind, length, schema_json, payload) VALUES (?, ?, ?, ?, ?)`,
		path, kind, length, schema, payload); err != nil {
		return &WriteError{Path: path, Msg: "create leaf", Err: err}
	}
	return nil
}

func (c *Container) leafExists(path string) (bool, error) {
	var n int
	if err := c.QueryRow(`SELECT COUNT(*) FROM leaves WHERE path = ?`, path).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// putAttributes stores meta at owner in sorted key order. Re-writing an
// attribute replaces it silently, matching the last-writer-wins behavior
// of declared metadata groups.
func (c *Container) putAttributes(owner string, meta series.Meta) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kind, text := meta[k].Storage()
		if _, err := c.Exec(
			`INSERT OR REPLACE INTO attributes (owner_path, name, kind, value) VALUES (?, ?, ?, ?)`,
			owner, k, kind, text); err != nil {
			return &WriteError{Path: owner, Msg: "write attribute " + k, Err: err}
		}
	}
	return nil
}
