// Package store holds the direct-database implementations of the backend
// preference and transcript interfaces.
//
// Both implementations share one schema: a transcriptions table (meeting_id,
// content, timestamp, speaker) and a user_preferences table keyed by user_id
// with a transcription_provider column. The subpackages are:
//
//   - [github.com/MrWong99/boardroom/pkg/store/postgres] uses a pgx pool and
//     matches the hosted project's tables.
//   - [github.com/MrWong99/boardroom/pkg/store/sqlite] is a single-file store
//     for offline recording on a laptop.
package store
