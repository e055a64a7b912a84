package testutil

import (
	"path/filepath"
	"testing"
)

// Environment is an isolated directory layout for end-to-end pipeline tests.
type Environment struct {
	Root        string
	DownloadDir string
	SimsDir     string
	ModsDir     string
	StagingRoot string
}

// NewEnvironment creates Downloads, Sims 4/Mods and a staging root under a
// fresh temporary directory.
func NewEnvironment(t *testing.T) *Environment {
	t.Helper()

	root := t.TempDir()
	env := &Environment{
		Root:        root,
		DownloadDir: CreateDir(t, root, "Downloads"),
		SimsDir:     CreateDir(t, root, "The Sims 4"),
		StagingRoot: filepath.Join(root, "tmp", "org.comroid.symblink", "ts4"),
	}
	env.ModsDir = CreateDir(t, env.SimsDir, "Mods")
	return env
}

// Drop places a file in the download directory and returns its path.
func (e *Environment) Drop(t *testing.T, name, content string) string {
	t.Helper()
	return CreateFile(t, e.DownloadDir, name, content)
}

// DropZip places a zip archive in the download directory.
func (e *Environment) DropZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	return CreateZip(t, e.DownloadDir, name, entries)
}

// DropFixture copies a fixture file into the download directory under its
// own base name.
func (e *Environment) DropFixture(t *testing.T, fixture string) string {
	t.Helper()
	return CopyFile(t, fixture, e.DownloadDir, filepath.Base(fixture))
}

// ModDir returns the target directory for modID.
func (e *Environment) ModDir(modID string) string {
	return filepath.Join(e.ModsDir, modID)
}

// StagingDir returns the staging directory for modID.
func (e *Environment) StagingDir(modID string) string {
	return filepath.Join(e.StagingRoot, modID)
}
