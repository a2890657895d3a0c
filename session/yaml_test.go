package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewYAML = `
type: design-review
description: Review a design document.
steps:
  - name: collect-doc
    capabilities: [facilitation]
  - name: review
    capabilities: [analysis]
    timeout: 45s
    retries: 2
    needs: [collect-doc]
`

func TestParsePipelineYAML(t *testing.T) {
	p, err := ParsePipelineYAML([]byte(reviewYAML))
	require.NoError(t, err)

	assert.Equal(t, "design-review", p.Type)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "collect-doc", p.Steps[0].Name)
	assert.Equal(t, 45*time.Second, p.Steps[1].Timeout)
	assert.Equal(t, 2, p.Steps[1].MaxRetries)
	assert.Equal(t, []string{"collect-doc"}, p.Steps[1].Needs)
	assert.NotNil(t, p.Steps[1].BuildPayload, "steps with needs embed prior artifacts in the payload")
}

func TestParsePipelineYAML_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not yaml":    "::\n  - broken",
		"bad timeout": "type: t\nsteps:\n  - name: a\n    timeout: soon",
		"bad needs":   "type: t\nsteps:\n  - name: a\n    needs: [later]",
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePipelineYAML([]byte(payload))
			require.Error(t, err)
		})
	}
}

func TestLoadPipelineDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-review.yaml"), []byte(reviewYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-standup.yml"), []byte("type: quick-standup\nsteps:\n  - name: collect\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	pipelines, err := LoadPipelineDir(dir)
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	// files load in lexical path order
	assert.Equal(t, "quick-standup", pipelines[0].Type)
	assert.Equal(t, "design-review", pipelines[1].Type)
}

func TestLoadPipelineDir_Missing(t *testing.T) {
	pipelines, err := LoadPipelineDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, pipelines)
}
