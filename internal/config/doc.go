// Package config persists the monitor's settings file.
//
// The file serves two roles:
//
//   - Address book: the last network address at which a probe confirmed a
//     CP-02 charging hub. The scanner reads it once before sweeping the
//     address range and overwrites it whenever a scan confirms a different
//     address. Revalidation is lazy; nothing polls the stored address until
//     it stops answering.
//
//   - Preferences: poll interval, fallback metrics URL, scan prefix and
//     tuning knobs.
//
// Writes are atomic (temporary file plus rename), so a crash mid-write
// cannot corrupt the file. Reads that fail for any reason degrade to the
// compiled-in defaults; persistence problems are never fatal.
//
// Unlike a global registry, a Store is an explicit instance bound to one
// file path, which keeps tests independent of the user's real settings.
package config
