package container

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// Read-back helpers. The export pipeline itself is write-only; these
// exist for verification tools and tests.

// Open opens an existing container read-write. It does not truncate.
func Open(path string) (*Container, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Container{DB: db, path: path}, nil
}

// HasGroup reports whether path exists as a group.
func (c *Container) HasGroup(path string) (bool, error) {
	var n int
	err := c.QueryRow(`SELECT COUNT(*) FROM groups WHERE path = ?`, cleanPath(path)).Scan(&n)
	return n > 0, err
}

// LeafInfo returns the kind and logical length of the leaf at path.
func (c *Container) LeafInfo(path string) (kind string, length int, err error) {
	err = c.QueryRow(`SELECT kind, length FROM leaves WHERE path = ?`, cleanPath(path)).
		Scan(&kind, &length)
	if err == sql.ErrNoRows {
		return "", 0, fmt.Errorf("no leaf at %q", path)
	}
	return kind, length, err
}

// FloatLeaf decodes the float64 vector leaf at path.
func (c *Container) FloatLeaf(path string) ([]float64, error) {
	var kind string
	var payload []byte
	err := c.QueryRow(`SELECT kind, payload FROM leaves WHERE path = ?`, cleanPath(path)).
		Scan(&kind, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no leaf at %q", path)
	}
	if err != nil {
		return nil, err
	}
	if kind != "float64" {
		return nil, fmt.Errorf("leaf %q has kind %q, not float64", path, kind)
	}

	out := make([]float64, len(payload)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
	}
	return out, nil
}

// TableLeaf returns the schema JSON and raw packed rows of the table leaf
// at path.
func (c *Container) TableLeaf(path string) (schemaJSON string, rows []byte, length int, err error) {
	err = c.QueryRow(`SELECT schema_json, length, payload FROM leaves WHERE path = ?`, cleanPath(path)).
		Scan(&schemaJSON, &length, &rows)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("no leaf at %q", path)
	}
	return schemaJSON, rows, length, err
}

// TextLeaf returns the text blob at path.
func (c *Container) TextLeaf(path string) (string, error) {
	var kind string
	var payload []byte
	err := c.QueryRow(`SELECT kind, payload FROM leaves WHERE path = ?`, cleanPath(path)).
		Scan(&kind, &payload)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no leaf at %q", path)
	}
	if err != nil {
		return "", err
	}
	if kind != "text" {
		return "", fmt.Errorf("leaf %q has kind %q, not text", path, kind)
	}
	return string(payload), nil
}

// Attribute returns the kind tag and stored text of one attribute.
func (c *Container) Attribute(owner, name string) (kind, value string, err error) {
	err = c.QueryRow(`SELECT kind, value FROM attributes WHERE owner_path = ? AND name = ?`,
		cleanPath(owner), name).Scan(&kind, &value)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("no attribute %q at %q", name, owner)
	}
	return kind, value, err
}
