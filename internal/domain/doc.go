// Package domain models records backed by legacy weather lookup files.
//
// # Lookup Files
//
// Each entity (forecasts, observations, station metadata) keeps one file per
// location in its own directory, named
//
//	<stem><postfix><extension>  →  e.g. "EGLL_fc.lookup"
//
// where the extension follows the entity's format (".array.php", ".hash.rb"
// or ".lookup"). Files are normalized and parsed by package lookup; see its
// documentation for the syntax of each format.
//
// # Loading
//
// [Loader.FromLookup] resolves the path, stats it and fetches the normalized
// text from the cache keyed by path and mtime:
//
//	"<path>_data_<mtime unix>"
//
// so a rewritten file is picked up on the next load without explicit
// invalidation. A missing file is logged and yields a record without data.
//
// Dependent lookups are merged on top of the primary text as
//
//	<primary>.merge(<dependent>)
//
// so dependent keys override primary ones. A dependent may take its stem from
// a primary variable (Dependent.Key). Any failure loading a dependent is
// logged and counted; the record keeps the data merged so far.
//
// # Variables
//
// [Record.Vars] parses lazily and caches the mapping under
//
//	"<entity>/<filename-or-id>/<timestamp unix>"
//
// Writing data through [Record.SetData] or [Record.SetVars] drops the parsed
// mapping and bypasses the shared cache for the rest of the record's life.
//
// # Issued-At
//
// Resolved once per record, in order:
//
//  1. a stored or pinned value, returned unchanged
//  2. "_gmtissued", its wall clock read as UTC; unparsable values are logged
//  3. "_date0" + " " + "_time0" in the configured location
//  4. the current time in UTC
//
// Every fallback to the current time is reported to the [Observer].
//
// # Period Accessors
//
// Forecast variables are keyed by period. [Accessor] names the template,
// e.g. [PPeriod] maps ("temp", 2) to "_ptemp_2" and [HrPeriod] maps it to
// "_temp_hr_2". A [Projection] binds a record to one accessor.
package domain
