package inventory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FileInventory reads a local "datetime,path" listing. A first line containing
// "datetime" is treated as a header and skipped.
type FileInventory struct {
	Path string
}

// Walk calls fn for every line of the listing.
func (f *FileInventory) Walk(ctx context.Context, fn WalkFunc) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open inventory file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)

	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || (line == 1 && strings.Contains(text, "datetime")) {
			continue
		}

		when, key, ok := strings.Cut(text, ",")
		if !ok {
			return fmt.Errorf("%w: %s:%d: expected datetime,path", ErrInvalidRecord, f.Path, line)
		}

		modified, err := parseTime(when)
		if err != nil {
			return fmt.Errorf("%w: %s:%d: %w", ErrInvalidRecord, f.Path, line, err)
		}

		if err := fn(Record{Key: strings.TrimSpace(key), LastModified: modified}); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}

			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read inventory file: %w", err)
	}

	return nil
}
