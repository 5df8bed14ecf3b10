// Package memory persists the remote conversation handle between runs.
//
// Persistence model:
//   - One plain-text file holds exactly one handle; no structure, no versioning.
//   - Reads never fail: an unreadable file means "start a new conversation".
//   - Writes replace the file atomically so a failed save keeps the prior handle.
package memory
