package framework

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
functions:
  - id: 1
    code: ID
    name: Identify
    categories:
      - id: 10
        code: AM
        name: Asset Management
        subcategories:
          - id: 100
            code: "01"
            description: Hardware inventory
          - id: 101
            code: "02"
            description: Software inventory
  - id: 2
    code: PR
    name: Protect
    categories:
      - id: 20
        code: AA
        name: Identity Management, Authentication, and Access Control
        subcategories:
          - id: 200
            code: "01"
            description: Identities and credentials are managed
`

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed(strings.NewReader(sampleSeed))
	require.NoError(t, err)

	fns, cats, subs := seed.Flatten()
	assert.Len(t, fns, 2)
	assert.Len(t, cats, 2)
	require.Len(t, subs, 3)

	assert.Equal(t, Subcategory{ID: 200, Code: "01", Description: "Identities and credentials are managed", CategoryID: 20, FunctionID: 2}, subs[2])
	assert.Equal(t, int64(1), cats[0].FunctionID)
}

func TestParseSeed_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "empty",
			input:   "",
			wantErr: "framework seed is empty",
		},
		{
			name:    "unknown field",
			input:   "functions:\n  - id: 1\n    code: ID\n    colour: red\n",
			wantErr: "decode framework seed",
		},
		{
			name:    "non-positive id",
			input:   "functions:\n  - id: 0\n    code: ID\n",
			wantErr: "id must be positive",
		},
		{
			name:    "missing code",
			input:   "functions:\n  - id: 1\n    categories:\n      - id: 10\n        code: AM\n",
			wantErr: "code non-empty",
		},
		{
			name: "duplicate subcategory",
			input: `functions:
  - id: 1
    code: ID
    categories:
      - id: 10
        code: AM
        subcategories:
          - {id: 100, code: "01"}
      - id: 11
        code: BE
        subcategories:
          - {id: 100, code: "02"}
`,
			wantErr: "duplicate subcategory id 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStore_SeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framework.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSeed), 0o600))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)

	store := NewStore(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, store.Seed(ctx, seed))
	// Seeding twice leaves the tables unchanged.
	require.NoError(t, store.Seed(ctx, seed))

	fns, cats, subs, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 2, 3}, []int64{fns, cats, subs})

	problems, err := store.FindInconsistent(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open framework seed")
}
