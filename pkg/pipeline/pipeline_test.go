package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/symblink/pkg/activity"
	"github.com/arthur-debert/symblink/pkg/archive"
	"github.com/arthur-debert/symblink/pkg/errors"
	"github.com/arthur-debert/symblink/pkg/filesystem"
	"github.com/arthur-debert/symblink/pkg/mover"
	"github.com/arthur-debert/symblink/pkg/pipeline"
	"github.com/arthur-debert/symblink/pkg/policy"
	"github.com/arthur-debert/symblink/pkg/staging"
	"github.com/arthur-debert/symblink/pkg/testutil"
	"github.com/arthur-debert/symblink/pkg/types"
)

type levels struct {
	mu  sync.Mutex
	got []activity.LoadLevel
}

func (l *levels) SetLoad(level activity.LoadLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, level)
}

func (l *levels) last() activity.LoadLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.got) == 0 {
		return activity.Idle
	}
	return l.got[len(l.got)-1]
}

type fixture struct {
	env      *testutil.Environment
	pipeline *pipeline.Pipeline
	levels   *levels
	opts     pipeline.Options
}

func newFixture(t *testing.T, mutate ...func(*pipeline.Options)) *fixture {
	t.Helper()
	env := testutil.NewEnvironment(t)
	fs := filesystem.NewOS()
	lv := &levels{}

	opts := pipeline.Options{
		Fs:         fs,
		Policy:     policy.Default(),
		Staging:    staging.NewManager(fs, env.StagingRoot),
		Mover:      mover.New(fs, filesystem.OSVolumes{}),
		Extractors: archive.NewRegistry(0),
		Locks:      filesystem.LockedSet{},
		ModsDir:    env.ModsDir,
		Activity:   activity.NewCompanion(lv),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return &fixture{env: env, pipeline: pipeline.New(opts), levels: lv, opts: opts}
}

func (f *fixture) process(path string) types.Result {
	return f.pipeline.Process(context.Background(), types.NewDropEvent(path, types.Created))
}

func (f *fixture) assertStagingGone(t *testing.T, modID string) {
	t.Helper()
	testutil.AssertNoFile(t, f.env.StagingDir(modID))
}

func TestDirectAssetIsInstalled(t *testing.T) {
	f := newFixture(t)
	src := f.env.Drop(t, "CoolMod.package", "cool")

	res := f.process(src)

	require.NoError(t, res.Err)
	assert.Equal(t, types.OutcomeSuccess, res.Outcome)
	assert.Equal(t, types.StateDone, res.State)
	assert.Equal(t, "CoolMod", res.ModID)
	assert.Equal(t, []string{"CoolMod.package"}, res.Assets)
	assert.Equal(t, f.env.ModDir("CoolMod"), res.Target)
	assert.NotEmpty(t, res.RunID)
	testutil.AssertFileContent(t, filepath.Join(f.env.ModsDir, "CoolMod", "CoolMod.package"), "cool")
	f.assertStagingGone(t, "CoolMod")
	assert.Equal(t, activity.Idle, f.levels.last())
}

func TestZipAssetsAreFlattened(t *testing.T) {
	f := newFixture(t)
	src := f.env.DropZip(t, "Bundle.zip", map[string]string{
		"sub/a.package":   "A",
		"sub/b.ts4script": "B",
		"sub/readme.txt":  "ignored",
	})

	res := f.process(src)

	require.NoError(t, res.Err)
	assert.Equal(t, types.OutcomeSuccess, res.Outcome)
	assert.ElementsMatch(t, []string{"a.package", "b.ts4script"}, res.Assets)
	assert.Equal(t, []string{"a.package", "b.ts4script"}, testutil.ListFiles(t, f.env.ModDir("Bundle")))
	f.assertStagingGone(t, "Bundle")
}

func TestRarAssetsAreFlattened(t *testing.T) {
	f := newFixture(t)
	src := f.env.DropFixture(t, filepath.Join("testdata", "Cottage.rar"))

	res := f.process(src)

	require.NoError(t, res.Err)
	assert.Equal(t, types.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Cottage", res.ModID)
	assert.ElementsMatch(t, []string{"wall.package", "door.ts4script"}, res.Assets)
	assert.Equal(t, []string{"door.ts4script", "wall.package"}, testutil.ListFiles(t, f.env.ModDir("Cottage")))
	testutil.AssertFileContent(t, filepath.Join(f.env.ModDir("Cottage"), "wall.package"), "wall")
	assert.True(t, testutil.FileExists(t, src), "archives stay in the download directory")
	f.assertStagingGone(t, "Cottage")
}

func TestBlacklistedDropIsIgnoredWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	src := f.env.Drop(t, "Partial.crdownload", "half")

	res := f.process(src)

	assert.Equal(t, types.OutcomeIgnored, res.Outcome)
	assert.Equal(t, "blacklisted", res.Reason)
	testutil.AssertNoFile(t, f.env.StagingRoot)
	assert.Empty(t, testutil.ListFiles(t, f.env.ModsDir))
	testutil.AssertFileContent(t, src, "half")
}

func TestNotWhitelistedDropIsIgnored(t *testing.T) {
	f := newFixture(t)
	res := f.process(f.env.Drop(t, "notes.txt", "x"))

	assert.Equal(t, types.OutcomeIgnored, res.Outcome)
	assert.Equal(t, "not-whitelisted", res.Reason)
	testutil.AssertNoFile(t, f.env.StagingRoot)
}

func TestLockedArchiveIsSkipped(t *testing.T) {
	locks := filesystem.LockedSet{}
	f := newFixture(t, func(o *pipeline.Options) { o.Locks = locks })
	src := f.env.DropZip(t, "Locked.zip", map[string]string{"a.package": "A"})
	locks[src] = true

	res := f.process(src)

	require.NoError(t, res.Err)
	assert.Equal(t, types.OutcomeSkippedLocked, res.Outcome)
	f.assertStagingGone(t, "Locked")
	testutil.AssertNoFile(t, f.env.ModDir("Locked"))
	assert.True(t, testutil.FileExists(t, src))
}

func TestArchiveWithoutAssets(t *testing.T) {
	f := newFixture(t)
	src := f.env.DropZip(t, "Empty.zip", map[string]string{"readme.txt": "hi", "img/x.png": "png"})

	res := f.process(src)

	require.NoError(t, res.Err)
	assert.Equal(t, types.OutcomeNoAssets, res.Outcome)
	testutil.AssertNoFile(t, f.env.ModDir("Empty"))
	f.assertStagingGone(t, "Empty")
}

func TestCorruptArchiveFailsAndServiceContinues(t *testing.T) {
	f := newFixture(t)

	res := f.process(f.env.Drop(t, "Corrupt.zip", "not a zip"))

	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
	assert.Equal(t, types.StateGathering, res.FailedIn)
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrExtraction))
	assert.Equal(t, "Corrupt", errors.GetErrorDetails(res.Err)["mod_id"])
	f.assertStagingGone(t, "Corrupt")
	testutil.AssertNoFile(t, f.env.ModDir("Corrupt"))
	assert.Equal(t, activity.Idle, f.levels.last())

	next := f.process(f.env.Drop(t, "Next.package", "n"))
	assert.Equal(t, types.OutcomeSuccess, next.Outcome)
}

func TestUnsupportedArchiveFormat(t *testing.T) {
	f := newFixture(t, func(o *pipeline.Options) {
		o.Policy = policy.New(append(policy.DefaultWhitelist, ".7z"), policy.DefaultBlacklist, policy.DefaultAssets)
	})

	res := f.process(f.env.Drop(t, "Bundle.7z", "7z"))

	assert.True(t, res.Failed())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrUnsupportedFormat))
	f.assertStagingGone(t, "Bundle")
}

func TestMalformedName(t *testing.T) {
	for _, name := range []string{".zip", "..zip", "..package"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			res := f.process(f.env.Drop(t, name, "x"))

			assert.True(t, res.Failed())
			assert.Equal(t, types.StateStaging, res.FailedIn)
			assert.True(t, errors.IsErrorCode(res.Err, errors.ErrMalformedName))
			testutil.AssertNoFile(t, f.env.StagingRoot)
			assert.Equal(t, []string{"Mods"}, dirNames(t, f.env.SimsDir))
		})
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestVanishedSourceIsIgnored(t *testing.T) {
	f := newFixture(t)

	res := f.process(filepath.Join(f.env.DownloadDir, "Gone.zip"))

	assert.Equal(t, types.OutcomeIgnored, res.Outcome)
	assert.Equal(t, "source vanished", res.Reason)
	testutil.AssertNoFile(t, f.env.StagingRoot)
}

func TestDuplicateEventAfterInstall(t *testing.T) {
	f := newFixture(t)
	src := f.env.Drop(t, "CoolMod.package", "cool")

	first := f.pipeline.Process(context.Background(), types.NewDropEvent(src, types.Created))
	second := f.pipeline.Process(context.Background(), types.NewDropEvent(src, types.Renamed))

	assert.Equal(t, types.OutcomeSuccess, first.Outcome)
	assert.Equal(t, types.OutcomeIgnored, second.Outcome)
	testutil.AssertFileContent(t, filepath.Join(f.env.ModDir("CoolMod"), "CoolMod.package"), "cool")
}

func TestFlattenCollisionIsAssemblyError(t *testing.T) {
	f := newFixture(t)
	src := f.env.DropZip(t, "Dup.zip", map[string]string{
		"a/x.package": "one",
		"b/X.package": "two",
	})

	res := f.process(src)

	assert.True(t, res.Failed())
	assert.Equal(t, types.StateAssembling, res.FailedIn)
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrAssembly))
	testutil.AssertNoFile(t, f.env.ModDir("Dup"))
	f.assertStagingGone(t, "Dup")
}

func TestRelocationConflictRollsBackOwnFiles(t *testing.T) {
	f := newFixture(t)
	existing := testutil.CreateFile(t, f.env.ModDir("Bundle"), "x.package", "installed earlier")
	src := f.env.DropZip(t, "Bundle.zip", map[string]string{
		"a.package": "new a",
		"x.package": "new x",
	})

	res := f.process(src)

	assert.True(t, res.Failed())
	assert.Equal(t, types.StateRelocating, res.FailedIn)
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrRelocation))
	assert.True(t, errors.HasErrorCode(res.Err, errors.ErrMove))
	testutil.AssertFileContent(t, existing, "installed earlier")
	testutil.AssertNoFile(t, filepath.Join(f.env.ModDir("Bundle"), "a.package"))
	f.assertStagingGone(t, "Bundle")
}

func TestFailedDirectInstallKeepsDownload(t *testing.T) {
	f := newFixture(t)
	existing := testutil.CreateFile(t, f.env.ModDir("CoolMod"), "CoolMod.package", "installed earlier")
	src := f.env.Drop(t, "CoolMod.package", "new")

	res := f.process(src)

	assert.True(t, res.Failed())
	assert.Equal(t, types.StateRelocating, res.FailedIn)
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrRelocation))
	testutil.AssertFileContent(t, existing, "installed earlier")
	testutil.AssertFileContent(t, src, "new")
	assert.Equal(t, []string{"CoolMod.package"}, testutil.ListFiles(t, f.env.DownloadDir))
	f.assertStagingGone(t, "CoolMod")
}

// failingMover fails every move whose destination is below dir.
type failingMover struct {
	pipeline.Mover
	dir string
}

func (m failingMover) Move(src, dst string) (mover.Strategy, error) {
	if filepath.Dir(filepath.Dir(dst)) == m.dir {
		return mover.StrategyNone, errors.New(errors.ErrMove, "disk full")
	}
	return m.Mover.Move(src, dst)
}

func TestRelocationFailureRemovesNewTarget(t *testing.T) {
	f := newFixture(t, func(o *pipeline.Options) {
		o.Mover = failingMover{Mover: o.Mover, dir: o.ModsDir}
	})
	src := f.env.Drop(t, "CoolMod.package", "cool")

	res := f.process(src)

	assert.True(t, res.Failed())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrRelocation))
	testutil.AssertNoFile(t, f.env.ModDir("CoolMod"))
	f.assertStagingGone(t, "CoolMod")
	testutil.AssertFileContent(t, src, "cool")
}

func TestStagingFailureRaisesHighLoad(t *testing.T) {
	f := newFixture(t, func(o *pipeline.Options) {
		blocker := filepath.Join(filepath.Dir(o.ModsDir), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("file"), 0644))
		o.Staging = staging.NewManager(o.Fs, filepath.Join(blocker, "ts4"))
	})

	res := f.process(f.env.Drop(t, "CoolMod.package", "cool"))

	assert.True(t, res.Failed())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrStaging))
	assert.Equal(t, activity.High, f.levels.last())
	testutil.AssertFileContent(t, filepath.Join(f.env.DownloadDir, "CoolMod.package"), "cool")
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, afero.Fs, string, string) error {
	panic("boom")
}

func TestPanicBecomesInternalFailure(t *testing.T) {
	f := newFixture(t, func(o *pipeline.Options) {
		reg := archive.NewRegistry(0)
		reg.Register(".zip", panickingExtractor{})
		o.Extractors = reg
	})

	res := f.process(f.env.DropZip(t, "Boom.zip", map[string]string{"a.package": "A"}))

	assert.True(t, res.Failed())
	assert.True(t, errors.IsErrorCode(res.Err, errors.ErrInternal))
	assert.Equal(t, types.StateGathering, res.FailedIn)
	f.assertStagingGone(t, "Boom")
	assert.Equal(t, activity.High, f.levels.last())
}

// probeExtractor records how many extractions run at once per mod id and in
// total, then delegates to the real zip extractor.
type probeExtractor struct {
	inner archive.Extractor

	mu        sync.Mutex
	active    map[string]int
	maxPerKey int
	total     int
	maxTotal  int
	hold      func(modID string)
}

func (p *probeExtractor) Extract(ctx context.Context, fs afero.Fs, archivePath, dest string) error {
	modID := filepath.Base(filepath.Dir(dest))

	p.mu.Lock()
	p.active[modID]++
	p.total++
	p.maxPerKey = max(p.maxPerKey, p.active[modID])
	p.maxTotal = max(p.maxTotal, p.total)
	p.mu.Unlock()

	if p.hold != nil {
		p.hold(modID)
	}

	defer func() {
		p.mu.Lock()
		p.active[modID]--
		p.total--
		p.mu.Unlock()
	}()
	return p.inner.Extract(ctx, fs, archivePath, dest)
}

func withProbe(probe *probeExtractor) func(*pipeline.Options) {
	return func(o *pipeline.Options) {
		reg := archive.NewRegistry(0)
		probe.inner = &archive.Zip{}
		probe.active = make(map[string]int)
		reg.Register(".zip", probe)
		o.Extractors = reg
	}
}

func TestSameModIdRunsAreSerialized(t *testing.T) {
	probe := &probeExtractor{hold: func(string) { time.Sleep(5 * time.Millisecond) }}
	f := newFixture(t, withProbe(probe))

	var paths []string
	for _, dir := range []string{"a", "b", "c", "d"} {
		paths = append(paths, testutil.CreateZip(t, filepath.Join(f.env.DownloadDir, dir), "Same.zip",
			map[string]string{"mod.package": dir}))
	}

	results := make([]types.Result, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.process(p)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, probe.maxPerKey)
	var ok int
	for _, r := range results {
		if r.Outcome == types.OutcomeSuccess {
			ok++
			continue
		}
		assert.True(t, errors.IsErrorCode(r.Err, errors.ErrRelocation), "unexpected %v", r.Err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, []string{"mod.package"}, testutil.ListFiles(t, f.env.ModDir("Same")))
	f.assertStagingGone(t, "Same")
	assert.Equal(t, activity.Idle, f.levels.last())
}

func TestDifferentModIdsRunInParallel(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	probe := &probeExtractor{hold: func(string) {
		barrier.Done()
		waited := make(chan struct{})
		go func() { barrier.Wait(); close(waited) }()
		select {
		case <-waited:
		case <-time.After(5 * time.Second):
		}
	}}
	f := newFixture(t, withProbe(probe))

	a := f.env.DropZip(t, "Alpha.zip", map[string]string{"a.package": "A"})
	b := f.env.DropZip(t, "Beta.zip", map[string]string{"b.package": "B"})

	var wg sync.WaitGroup
	for _, p := range []string{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.process(p)
			assert.Equal(t, types.OutcomeSuccess, res.Outcome)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, probe.maxTotal)
	testutil.AssertFileContent(t, filepath.Join(f.env.ModDir("Alpha"), "a.package"), "A")
	testutil.AssertFileContent(t, filepath.Join(f.env.ModDir("Beta"), "b.package"), "B")
}
