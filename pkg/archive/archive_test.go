package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/symblink/pkg/archive"
	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/filesystem"
	"github.com/arthur-debert/symblink/pkg/testutil"
)

func extract(t *testing.T, reg *archive.Registry, archivePath, dest string) error {
	t.Helper()
	x, err := reg.ForName(archivePath)
	require.NoError(t, err)
	return x.Extract(context.Background(), filesystem.NewOS(), archivePath, dest)
}

func TestZipExtractsNestedEntries(t *testing.T) {
	root := t.TempDir()
	zipPath := testutil.CreateZip(t, root, "Bundle.zip", map[string]string{
		"sub/":                  "",
		"sub/a.package":         "A",
		"sub/b.ts4script":       "B",
		"sub/deeper/readme.txt": "docs",
		"top.package":           "T",
	})
	dest := testutil.CreateDir(t, root, "deflate")

	require.NoError(t, extract(t, archive.NewRegistry(0), zipPath, dest))

	assert.Equal(t,
		[]string{"sub/a.package", "sub/b.ts4script", "sub/deeper/readme.txt", "top.package"},
		testutil.ListFiles(t, dest))
	testutil.AssertFileContent(t, filepath.Join(dest, "sub", "a.package"), "A")
}

func TestZipRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.package", "sub/../../evil.package", "/abs/evil.package", `..\evil.package`} {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			zipPath := testutil.CreateZip(t, root, "Evil.zip", map[string]string{name: "x"})
			dest := testutil.CreateDir(t, root, "staging/deflate")

			err := extract(t, archive.NewRegistry(0), zipPath, dest)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
			testutil.AssertNoFile(t, filepath.Join(root, "staging", "evil.package"))
			testutil.AssertNoFile(t, filepath.Join(root, "evil.package"))
		})
	}
}

func TestZipCorruptArchive(t *testing.T) {
	root := t.TempDir()
	zipPath := testutil.CreateFile(t, root, "Corrupt.zip", "this is not a zip file")
	dest := testutil.CreateDir(t, root, "deflate")

	err := extract(t, archive.NewRegistry(0), zipPath, dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
	assert.Equal(t, zipPath, errors.GetErrorDetails(err)["archive"])
}

func TestZipSizeBudget(t *testing.T) {
	root := t.TempDir()
	zipPath := testutil.CreateZip(t, root, "Big.zip", map[string]string{
		"a.package": "0123456789",
		"b.package": "0123456789",
	})

	t.Run("within budget", func(t *testing.T) {
		dest := testutil.CreateDir(t, root, "ok")
		require.NoError(t, extract(t, archive.NewRegistry(20), zipPath, dest))
	})

	t.Run("over budget", func(t *testing.T) {
		dest := testutil.CreateDir(t, root, "over")
		err := extract(t, archive.NewRegistry(15), zipPath, dest)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
	})
}

func TestZipHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	zipPath := testutil.CreateZip(t, root, "Bundle.zip", map[string]string{"a.package": "A"})
	dest := testutil.CreateDir(t, root, "deflate")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&archive.Zip{}).Extract(ctx, filesystem.NewOS(), zipPath, dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
	assert.ErrorIs(t, err, context.Canceled)
	testutil.AssertNoFile(t, filepath.Join(dest, "a.package"))
}

func TestZipOnMemoryFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := testutil.ZipBytes(t, map[string]string{"x/y.package": "Y"})
	require.NoError(t, afero.WriteFile(fs, "/dl/M.zip", data, 0644))
	require.NoError(t, fs.MkdirAll("/stage", 0755))

	require.NoError(t, (&archive.Zip{}).Extract(context.Background(), fs, "/dl/M.zip", "/stage"))

	got, err := afero.ReadFile(fs, "/stage/x/y.package")
	require.NoError(t, err)
	assert.Equal(t, "Y", string(got))
}

func TestRarExtractsNestedEntries(t *testing.T) {
	dest := testutil.CreateDir(t, t.TempDir(), "deflate")

	require.NoError(t, extract(t, archive.NewRegistry(0), filepath.Join("testdata", "Bundle.rar"), dest))

	assert.Equal(t,
		[]string{"sub/a.package", "sub/b.ts4script", "sub/deeper/readme.txt", "top.package"},
		testutil.ListFiles(t, dest))
	testutil.AssertFileContent(t, filepath.Join(dest, "sub", "a.package"), "A")
	testutil.AssertFileContent(t, filepath.Join(dest, "sub", "deeper", "readme.txt"), "docs")
	testutil.AssertFileContent(t, filepath.Join(dest, "top.package"), "T")
}

func TestRarRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	dest := testutil.CreateDir(t, root, "staging/deflate")

	err := extract(t, archive.NewRegistry(0), filepath.Join("testdata", "Evil.rar"), dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
	testutil.AssertNoFile(t, filepath.Join(root, "staging", "evil.package"))
	assert.Empty(t, testutil.ListFiles(t, dest))
}

func TestRarSizeBudget(t *testing.T) {
	// Bundle.rar holds 7 bytes of file data.
	rarPath := filepath.Join("testdata", "Bundle.rar")

	t.Run("within budget", func(t *testing.T) {
		dest := testutil.CreateDir(t, t.TempDir(), "ok")
		require.NoError(t, extract(t, archive.NewRegistry(7), rarPath, dest))
	})

	t.Run("over budget", func(t *testing.T) {
		dest := testutil.CreateDir(t, t.TempDir(), "over")
		err := extract(t, archive.NewRegistry(3), rarPath, dest)
		require.Error(t, err)
		assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
		assert.Equal(t, rarPath, errors.GetErrorDetails(err)["archive"])
	})
}

func TestRarOnMemoryFs(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "Bundle.rar"))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dl/Bundle.rar", data, 0644))
	require.NoError(t, fs.MkdirAll("/stage", 0755))

	require.NoError(t, (&archive.Rar{}).Extract(context.Background(), fs, "/dl/Bundle.rar", "/stage"))

	got, err := afero.ReadFile(fs, "/stage/sub/b.ts4script")
	require.NoError(t, err)
	assert.Equal(t, "B", string(got))
}

func TestRarCorruptArchive(t *testing.T) {
	root := t.TempDir()
	rarPath := testutil.CreateFile(t, root, "Corrupt.rar", "definitely not rar data")
	dest := testutil.CreateDir(t, root, "deflate")

	err := extract(t, archive.NewRegistry(0), rarPath, dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrExtraction))
}

func TestRegistryForName(t *testing.T) {
	reg := archive.NewRegistry(0)

	for _, name := range []string{"a.zip", "B.ZIP", "c.rar"} {
		_, err := reg.ForName(name)
		assert.NoError(t, err, name)
	}

	_, err := reg.ForName("bundle.7z")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUnsupportedFormat))
	assert.Equal(t, ".7z", errors.GetErrorDetails(err)["extension"])

	assert.ElementsMatch(t, []string{".zip", ".rar"}, reg.Extensions())
}
