// Package services implements the business logic of the migration
// engine.
//
// The package hosts the three batch passes the engine runs against a
// legacy host database, plus the supporting builders they share:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        Scanner                             │
//	│  walks every text column of the host database and persists │
//	│  each legacy video URL as a finding                        │
//	└────────────────────────────────────────────────────────────┘
//	┌────────────────────────────────────────────────────────────┐
//	│                        Rewriter                            │
//	│  resolves findings against the remote catalog and swaps    │
//	│  the legacy embeddings for Kaltura embed codes in place    │
//	└────────────────────────────────────────────────────────────┘
//	┌────────────────────────────────────────────────────────────┐
//	│                        Migrator                            │
//	│  migrates legacy course activities, reconciling one remote │
//	│  category per activity (or per course)                     │
//	└────────────────────────────────────────────────────────────┘
//
// Supporting pieces:
//
//   - Catalog is the interface to the remote media catalog; the rest
//     of the package never talks to Kaltura directly, which keeps every
//     pass testable against a fake.
//   - Categories implements category reconciliation: finding, renaming,
//     moving or copying remote categories until each activity owns the
//     category named after it.
//   - Overlay simulates reconciliation for dry runs. Planned mutations
//     are recorded as effects over a virtual category view instead of
//     being applied, so a dry run reports exactly what a real run
//     would do.
//   - EmbedBuilder renders the replacement markup (script embeds, link
//     placeholders, direct URLs, channel links).
//   - Exporter writes findings and the audit trail as csv or xlsx.
//
// All passes are resumable: work already done is skipped on the next
// run, and per-item failures are recorded in the audit log without
// aborting the batch.
package services
