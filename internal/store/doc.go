// Package store holds the live model of one PixelIt device: connection
// status, log lines, sensor readings, button events, system info and the
// configuration.
//
// The Store is created by the application root and passed to whoever needs
// it; there is no package-level instance. Every update operation either
// applies completely or returns an error without touching state. Readers
// receive deep copies.
//
// Consumers subscribe per Slice and are called synchronously, after the
// update that triggered them has been applied and the lock released.
//
// Configuration follows a last-confirmed-wins policy: a config pushed by the
// device replaces the confirmed snapshot and discards any local proposal,
// even one edited after it was submitted.
package store
