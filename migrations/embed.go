// Package migrations embeds the SQL schema for the item index.
//
// Files follow the 001_name.(up|down).sql convention. Validate checks naming,
// up/down pairing and sequence continuity before a migration is applied.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embedded embed.FS

var (
	// ErrNoMigrations is returned when the filesystem holds no migration files.
	ErrNoMigrations = errors.New("no migration files found")
	// ErrInvalidFilename is returned for .sql files not matching 001_name.(up|down).sql.
	ErrInvalidFilename = errors.New("invalid migration filename")
	// ErrUnpaired is returned when an up migration has no down migration or vice versa.
	ErrUnpaired = errors.New("unpaired migration")
	// ErrSequenceGap is returned when sequence numbers do not run 001, 002, ... without gaps.
	ErrSequenceGap = errors.New("gap in migration sequence")
)

// Migration filename regex: 001_migration_name.up.sql or 001_migration_name.down.sql
var filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Info describes one migration file.
type Info struct {
	Sequence  int
	Name      string
	Direction string // "up" or "down"
	Filename  string
}

// FS returns the embedded migration files.
func FS() fs.FS {
	return embedded
}

// List returns the migration files in fsys sorted lexicographically.
// Non-.sql files are skipped; malformed .sql names are an error.
func List(fsys fs.FS) ([]Info, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		info, err := parseFilename(entry.Name())
		if err != nil {
			return nil, err
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Filename < infos[j].Filename })

	return infos, nil
}

// Validate checks that fsys holds a paired, gapless migration sequence starting at 001.
// It returns the highest sequence number found.
func Validate(fsys fs.FS) (int, error) {
	infos, err := List(fsys)
	if err != nil {
		return 0, err
	}

	if len(infos) == 0 {
		return 0, ErrNoMigrations
	}

	directions := make(map[int]map[string]bool)

	for _, info := range infos {
		if directions[info.Sequence] == nil {
			directions[info.Sequence] = make(map[string]bool)
		}

		directions[info.Sequence][info.Direction] = true
	}

	sequences := make([]int, 0, len(directions))
	for seq, dirs := range directions {
		if !dirs["up"] || !dirs["down"] {
			return 0, fmt.Errorf("%w: %03d", ErrUnpaired, seq)
		}

		sequences = append(sequences, seq)
	}

	sort.Ints(sequences)

	for i, seq := range sequences {
		if seq != i+1 {
			return 0, fmt.Errorf("%w: expected %03d, found %03d", ErrSequenceGap, i+1, seq)
		}
	}

	return sequences[len(sequences)-1], nil
}

func parseFilename(filename string) (Info, error) {
	matches := filenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 { //nolint:mnd
		return Info{}, fmt.Errorf("%w: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			ErrInvalidFilename, filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s: %w", ErrInvalidFilename, filename, err)
	}

	return Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}
