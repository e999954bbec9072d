// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Artists are soft deleted via deleted_at timestamps and excluded from queries by default; everything an artist
// owns cascades from the artist row.
//
// Key Implementations:
//   - [ArtistRepository] : artist accounts with username, email and API token lookups
//   - [PlatformRepository] : reporting platforms, resolved by canonical name
//   - [AlbumRepository], [TrackRepository] : per-artist catalog with get-or-create lookups
//   - [StatementRepository] : royalty statements deduplicated by source row hash
//   - [UploadRepository] : upload status and per-row counters
//   - [InsightRepository] : externally sourced platform metrics
//   - [AnalyticsRepository] : read-only aggregate queries behind the dashboard
//
// Sequence numbers provide stable, human-readable ordering (e.g., artist #42, upload #15) independent of UUIDs
// and creation timestamps. The [NextSequence] function atomically increments per-table sequence counters in
// dedicated sequence tables.
//
// Revenue is stored as integer ten-thousandths (revenue_e4) so SUM() stays exact; see [models.RevenueToE4].
package repositories
