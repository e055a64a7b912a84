// Package testutil provides helpers shared by symblink's tests: file and
// directory builders, zip archive builders, content assertions and an
// Environment that lays out a download directory, a Sims directory and a
// staging root inside t.TempDir().
package testutil
