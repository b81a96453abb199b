// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderReloadSwapsConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig(t))
	initial, err := LoadAndValidate(path, nil)
	require.NoError(t, err)

	h := NewHolder(initial, path, nil)
	events := make(chan ReloadEvent, 1)
	h.Subscribe(events)

	// Append a second profile and reload.
	in, out := t.TempDir(), t.TempDir()
	second := minimalConfig(t) + `
  - name: shows
    input_path: ` + in + `
    output_path: ` + out + `
    encoder: svt-av1
`
	require.NoError(t, os.WriteFile(path, []byte(second), 0o644))

	require.NoError(t, h.Reload(context.Background()))
	assert.Len(t, h.Get().Profiles, 2)
	assert.NotNil(t, h.Get().ProfileByName("shows"))

	ev := <-events
	require.NoError(t, ev.Err)
	assert.Equal(t, 2, ev.Profiles)
}

func TestHolderReloadKeepsPreviousOnFailure(t *testing.T) {
	path := writeConfig(t, minimalConfig(t))
	initial, err := LoadAndValidate(path, nil)
	require.NoError(t, err)

	h := NewHolder(initial, path, nil)
	events := make(chan ReloadEvent, 1)
	h.Subscribe(events)

	require.NoError(t, os.WriteFile(path, []byte("profiles: [}"), 0o644))

	require.Error(t, h.Reload(context.Background()))
	assert.Same(t, initial, h.Get(), "failed reload must keep the previous config")

	ev := <-events
	assert.Error(t, ev.Err)
}

func TestHolderReloadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig(t))
	initial, err := LoadAndValidate(path, nil)
	require.NoError(t, err)

	h := NewHolder(initial, path, nil)

	// Parses fine but fails validation: output equals input.
	in := t.TempDir()
	bad := `
profiles:
  - name: movies
    input_path: ` + in + `
    output_path: ` + in + `
    encoder: svt-av1
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	err = h.Reload(context.Background())
	require.Error(t, err)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Same(t, initial, h.Get())
}
