// Package policy classifies dropped files by extension and derives the mod
// identifier used to namespace staging and target directories.
package policy

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/arthur-debert/symblink/pkg/errors"
)

// Classification is the verdict of ClassifyExtension.
type Classification int

const (
	Accepted Classification = iota
	RejectedNotWhitelisted
	RejectedBlacklisted
)

func (c Classification) String() string {
	switch c {
	case Accepted:
		return "accepted"
	case RejectedNotWhitelisted:
		return "not-whitelisted"
	case RejectedBlacklisted:
		return "blacklisted"
	default:
		return "unknown"
	}
}

var (
	DefaultWhitelist = []string{".zip", ".rar", ".package", ".ts4script"}
	DefaultBlacklist = []string{".crdownload", ".part", ".partial", ".download", ".opdownload"}
	DefaultAssets    = []string{".package", ".ts4script"}
)

// Policy holds the three extension sets. All lookups are case-insensitive.
type Policy struct {
	whitelist extSet
	blacklist extSet
	assets    extSet
}

type extSet map[string]struct{}

func newExtSet(exts []string) extSet {
	set := make(extSet, len(exts))
	for _, e := range exts {
		if n := NormalizeExt(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func (s extSet) has(ext string) bool {
	_, ok := s[ext]
	return ok
}

func (s extSet) sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// New builds a Policy. Entries may be given with or without the leading dot.
func New(whitelist, blacklist, assets []string) *Policy {
	return &Policy{
		whitelist: newExtSet(whitelist),
		blacklist: newExtSet(blacklist),
		assets:    newExtSet(assets),
	}
}

// Default returns the stock Sims 4 policy.
func Default() *Policy {
	return New(DefaultWhitelist, DefaultBlacklist, DefaultAssets)
}

// ClassifyExtension looks only at the final extension of name. A blacklisted
// extension is rejected before the whitelist is consulted.
func (p *Policy) ClassifyExtension(name string) Classification {
	ext := Ext(name)
	if p.blacklist.has(ext) {
		return RejectedBlacklisted
	}
	if !p.whitelist.has(ext) {
		return RejectedNotWhitelisted
	}
	return Accepted
}

// IsAsset reports whether name is installable mod content on its own.
func (p *Policy) IsAsset(name string) bool {
	return p.assets.has(Ext(name))
}

// IsArchive reports whether name is accepted but is not itself an asset, so
// it has to be extracted.
func (p *Policy) IsArchive(name string) bool {
	return p.ClassifyExtension(name) == Accepted && !p.IsAsset(name)
}

// AssetExtensions returns the asset set, sorted.
func (p *Policy) AssetExtensions() []string {
	return p.assets.sorted()
}

// Whitelist returns the accepted extensions, sorted.
func (p *Policy) Whitelist() []string {
	return p.whitelist.sorted()
}

// Blacklist returns the rejected extensions, sorted.
func (p *Policy) Blacklist() []string {
	return p.blacklist.sorted()
}

// DeriveModId strips the final extension from the base name of name.
func DeriveModId(name string) (string, error) {
	base := filepath.Base(name)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return "", errors.Newf(errors.ErrMalformedName, "%q has no extension", base).
			WithDetail("name", base)
	}
	// "..zip" would name the parent of the mods directory.
	if strings.Trim(base[:idx], ".") == "" {
		return "", errors.Newf(errors.ErrMalformedName, "%q has an empty stem", base).
			WithDetail("name", base)
	}
	return base[:idx], nil
}

// Ext returns the lower-cased final extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// NormalizeExt lower-cases e and makes sure it starts with a dot.
func NormalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" {
		return ""
	}
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}
