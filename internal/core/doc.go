// Package core provides the business logic for roster filtering and export.
//
// This package is independent of any UI or transport layer. The web server
// and the command-line tool both drive it through the same calls.
//
// # Pipeline
//
//  1. A [RowSource] ([CSVSource] or [WorkbookSource]) yields header-indexed rows
//  2. [Extract] applies the [FilterConfig] and drops duplicate student IDs
//  3. [Sort] orders records by course level, course title, then last name
//  4. [Lines] / [WriteTable] render for display; [Export] writes a workbook
//
// # Column Mapping
//
// Source headers are matched case-insensitively through a [ColumnMap].
// [DefaultColumns] fits the student records system export; [DisplayColumns]
// reads back a workbook written by [Export]. A column that is missing reads
// as an empty string.
//
// # Runs
//
// [Service] keeps each run's [ResultSet] in a [Session] keyed by run ID.
// Sessions serialise access to their records, and a [RunLimiter] processes
// one roster at a time unless configured otherwise. When a database is
// configured, a [PgRecorder] keeps a history of runs and exports.
//
// # Error Handling
//
// Failures are one of three kinds, matched with errors.Is:
//
//   - [ErrSourceUnavailable]: the file is missing, unreadable or not UTF-8
//   - [ErrDestinationUnwritable]: the workbook could not be saved
//   - [ErrEmptyResult]: an export was attempted with no records
//
// [MapError] turns any of them into a [UserMessage] with a support code.
package core
