package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmbedded(t *testing.T) {
	latest, err := Validate(FS())
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	infos, err := List(FS())
	require.NoError(t, err)
	assert.Len(t, infos, 4)
	assert.Equal(t, "001_create_items.down.sql", infos[0].Filename)
	assert.Equal(t, "create_items", infos[0].Name)
}

func TestValidate(t *testing.T) {
	sql := &fstest.MapFile{Data: []byte("SELECT 1;")}

	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr error
	}{
		{
			name:    "empty",
			files:   fstest.MapFS{"README.md": sql},
			wantErr: ErrNoMigrations,
		},
		{
			name:    "bad filename",
			files:   fstest.MapFS{"1_items.up.sql": sql},
			wantErr: ErrInvalidFilename,
		},
		{
			name:    "missing down",
			files:   fstest.MapFS{"001_items.up.sql": sql},
			wantErr: ErrUnpaired,
		},
		{
			name: "gap",
			files: fstest.MapFS{
				"001_items.up.sql":   sql,
				"001_items.down.sql": sql,
				"003_runs.up.sql":    sql,
				"003_runs.down.sql":  sql,
			},
			wantErr: ErrSequenceGap,
		},
		{
			name: "does not start at one",
			files: fstest.MapFS{
				"002_items.up.sql":   sql,
				"002_items.down.sql": sql,
			},
			wantErr: ErrSequenceGap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.files)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
