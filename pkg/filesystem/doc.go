// Package filesystem provides the filesystem used by symblink and the
// OS-level probes the pipeline needs that afero cannot express.
//
// The filesystem itself is an afero.Fs: production code uses NewOS, tests use
// afero.NewMemMapFs or wrap either with a failure-injecting Fs. On top of that
// the package offers:
//
//   - VolumeProbe: whether two paths live on the same storage volume, which
//     decides between rename and copy-then-delete.
//   - LockProbe: whether a file is still held open exclusively by its
//     producer, in which case ingestion is skipped until the next event.
//   - IsCrossDevice: classifies a rename error as "different volume".
//
// The OS probes are implemented per platform with golang.org/x/sys. On Unix the
// volume is the st_dev of the nearest existing ancestor and the lock probe is
// a non-blocking exclusive flock. On Windows the volume is the path's volume
// name and the lock probe opens the file with a zero share mode.
package filesystem
