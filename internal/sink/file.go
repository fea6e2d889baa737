package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// ErrUnsafePath is returned when a rendered path escapes the sink directory.
var ErrUnsafePath = errors.New("item path escapes output directory")

// File writes each Item as <dir>/[<template>/]<id>.json.
//
// The template may reference ${id}, ${collection}, ${date}, ${year}, ${month},
// ${day} and any Item property, e.g. "${collection}/${sentinel:utm_zone}/${year}".
// Unknown references render as "unknown".
type File struct {
	dir      string
	template string
}

// NewFile creates a File sink, creating dir if needed.
func NewFile(dir, template string) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &File{dir: dir, template: template}, nil
}

// Path returns the file path item is written to.
func (f *File) Path(item *stac.Item) (string, error) {
	sub := ""
	if f.template != "" {
		sub = os.Expand(f.template, func(name string) string {
			return filepath.Clean(strings.ReplaceAll(lookup(item, name), string(filepath.Separator), "_"))
		})
	}

	name := strings.ReplaceAll(item.ID, string(filepath.Separator), "_") + ".json"
	path := filepath.Join(f.dir, sub, name)

	rel, err := filepath.Rel(f.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}

	return path, nil
}

// Write stores item as indented JSON, replacing any previous file.
func (f *File) Write(_ context.Context, item *stac.Item) error {
	path, err := f.Path(item)
	if err != nil {
		return err
	}

	data, err := item.MarshalIndent()
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create directory for %s: %w", item.ID, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write item %s: %w", item.ID, err)
	}

	return nil
}

// Close is a no-op.
func (f *File) Close() error {
	return nil
}

func lookup(item *stac.Item, name string) string {
	switch name {
	case "id":
		return item.ID
	case "collection":
		return item.Collection
	}

	if t, err := item.Datetime(); err == nil {
		switch name {
		case "date":
			return t.Format("2006-01-02")
		case "year":
			return t.Format("2006")
		case "month":
			return t.Format("01")
		case "day":
			return t.Format("02")
		}
	}

	if v, ok := item.Properties[name]; ok && v != nil {
		return fmt.Sprint(v)
	}

	return "unknown"
}
