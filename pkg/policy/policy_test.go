package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/policy"
)

func TestClassifyExtension(t *testing.T) {
	p := policy.Default()

	tests := []struct {
		name string
		file string
		want policy.Classification
	}{
		{"zip", "Bundle.zip", policy.Accepted},
		{"rar", "Bundle.rar", policy.Accepted},
		{"package", "CoolMod.package", policy.Accepted},
		{"script", "CoolMod.ts4script", policy.Accepted},
		{"upper case", "COOLMOD.PACKAGE", policy.Accepted},
		{"mixed case", "Bundle.ZiP", policy.Accepted},
		{"full path", "/home/me/Downloads/Bundle.zip", policy.Accepted},
		{"crdownload", "Partial.crdownload", policy.RejectedBlacklisted},
		{"crdownload upper", "Partial.CRDOWNLOAD", policy.RejectedBlacklisted},
		{"marker over whitelisted inner", "Bundle.zip.crdownload", policy.RejectedBlacklisted},
		{"firefox part", "Bundle.zip.part", policy.RejectedBlacklisted},
		{"text file", "readme.txt", policy.RejectedNotWhitelisted},
		{"no extension", "README", policy.RejectedNotWhitelisted},
		{"trailing dot", "weird.", policy.RejectedNotWhitelisted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ClassifyExtension(tt.file))
		})
	}
}

func TestBlacklistOverridesWhitelist(t *testing.T) {
	p := policy.New([]string{".zip", "crdownload"}, []string{"CRDOWNLOAD"}, nil)

	assert.Equal(t, policy.RejectedBlacklisted, p.ClassifyExtension("x.crdownload"))
	assert.Equal(t, policy.RejectedBlacklisted, p.ClassifyExtension("x.CrDownload"))
	assert.Equal(t, policy.Accepted, p.ClassifyExtension("x.zip"))
}

func TestDeriveModId(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "CoolMod.package", "CoolMod"},
		{"only last extension", "Bundle.v2.zip", "Bundle.v2"},
		{"from path", "/downloads/Bundle.zip", "Bundle"},
		{"spaces", "My Cool Mod.zip", "My Cool Mod"},
		{"trailing dot", "weird.", "weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.DeriveModId(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveModIdMalformed(t *testing.T) {
	for _, in := range []string{"README", ".zip", "/downloads/.package", "..zip", "...package"} {
		t.Run(in, func(t *testing.T) {
			_, err := policy.DeriveModId(in)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrMalformedName))
		})
	}
}

func TestIsAsset(t *testing.T) {
	p := policy.Default()

	assert.True(t, p.IsAsset("a.package"))
	assert.True(t, p.IsAsset("b.TS4SCRIPT"))
	assert.False(t, p.IsAsset("bundle.zip"))
	assert.False(t, p.IsAsset("readme.txt"))
	assert.Equal(t, []string{".package", ".ts4script"}, p.AssetExtensions())
}

func TestIsArchive(t *testing.T) {
	p := policy.Default()

	assert.True(t, p.IsArchive("bundle.zip"))
	assert.True(t, p.IsArchive("Bundle.RAR"))
	assert.False(t, p.IsArchive("a.package"))
	assert.False(t, p.IsArchive("bundle.zip.crdownload"))
	assert.False(t, p.IsArchive("bundle.7z"))
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, ".zip", policy.NormalizeExt("ZIP"))
	assert.Equal(t, ".zip", policy.NormalizeExt(" .Zip "))
	assert.Equal(t, "", policy.NormalizeExt("  "))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "accepted", policy.Accepted.String())
	assert.Equal(t, "blacklisted", policy.RejectedBlacklisted.String())
	assert.Equal(t, "not-whitelisted", policy.RejectedNotWhitelisted.String())
}
