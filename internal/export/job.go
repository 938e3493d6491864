// Package export turns a JSON job description into a populated
// container: it resolves data types against the reader registry, reads
// each source once, and writes every mapping in declared order.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigurationError reports a defective job description. It is always
// raised before any container file is created.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Job is the root of a job description.
type Job struct {
	Output   Output       `json:"output"`
	Datasets []SourceSpec `json:"datasets"`
}

// Output names the container file to create.
type Output struct {
	Filename string `json:"filename"`
}

// SourceSpec binds one source file (or folder) to a registered data type
// and the mappings that place its channels in the container.
type SourceSpec struct {
	DataType string    `json:"data_type"`
	Filename string    `json:"filename"`
	Maps     []Mapping `json:"maps"`
}

// Mapping places channels of a source at one container path.
type Mapping struct {
	Path        string          `json:"path"`
	Channels    []string        `json:"channels"`
	SharedGroup bool            `json:"shared_group"`
	Meta        []MetaGroupSpec `json:"meta,omitempty"`
}

// MetaGroupSpec attaches attribute values to a set of channels under the
// mapping path. Info values must be JSON strings or numbers.
type MetaGroupSpec struct {
	Channels []string       `json:"channels"`
	Info     map[string]any `json:"info"`
}

// LoadJob loads and validates a job description from a JSON file.
// The file must have a .json extension and be under the max file size.
func LoadJob(path string) (*Job, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, configErrorf("job file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat job file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, configErrorf("job file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	job := &Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, configErrorf("failed to parse job JSON: %v", err)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks the job description against the reader registry. It
// catches everything that can be caught without opening source files, so
// a defective job never leaves a half-written container behind.
func (j *Job) Validate() error {
	if j.Output.Filename == "" {
		return configErrorf("output.filename is required")
	}
	if len(j.Datasets) == 0 {
		return configErrorf("at least one dataset is required")
	}
	for i, src := range j.Datasets {
		source, ok := Lookup(src.DataType)
		if !ok {
			return configErrorf("datasets[%d]: unknown data_type %q", i, src.DataType)
		}
		if src.Filename == "" {
			return configErrorf("datasets[%d]: filename is required", i)
		}
		if len(src.Maps) == 0 {
			return configErrorf("datasets[%d]: at least one map is required", i)
		}
		for k, m := range src.Maps {
			if m.Path == "" {
				return configErrorf("datasets[%d].maps[%d]: path is required", i, k)
			}
			// Event tables and text blobs carry no channel set.
			if source.Kind == KindSignal && len(m.Channels) == 0 {
				return configErrorf("datasets[%d].maps[%d]: channels is required for %q", i, k, src.DataType)
			}
			for g, mg := range m.Meta {
				if source.Kind == KindSignal && len(mg.Channels) == 0 {
					return configErrorf("datasets[%d].maps[%d].meta[%d]: channels is required", i, k, g)
				}
				if len(mg.Info) == 0 {
					return configErrorf("datasets[%d].maps[%d].meta[%d]: info is required", i, k, g)
				}
				for key, v := range mg.Info {
					switch v.(type) {
					case string, float64:
					default:
						return configErrorf("datasets[%d].maps[%d].meta[%d]: info %q must be a string or number, got %T",
							i, k, g, key, v)
					}
				}
			}
		}
	}
	return nil
}
