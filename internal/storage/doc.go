package storage

// Package storage persists reported location samples.
//
// It currently supports:
//   - Append-only sample log (file or sqlite backed)
//   - Recent-sample reads for the HTTP surface
