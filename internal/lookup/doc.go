// Package lookup reads legacy weather lookup files into flat key/value maps.
//
// # File Formats
//
// Forecasts and METARs were historically published as small text files, one
// per station, in one of three formats:
//
//	php        EGLL.array.php   <?$vars = array(
//	                            "_gmtissued" => "2010-03-15 12:00",
//	                            );
//	                            ?>
//	ruby_hash  EGLL.hash.rb     {"_gmtissued" => "2010-03-15 12:00"}
//	lookup     EGLL.lookup      s_gmtissued|2010-03-15 12:00
//	                            _ptemp_max_1|14
//
// All three are rewritten into the ruby_hash syntax ("canonical literal")
// by [Normalize] and then read by [Parse]. The text is never evaluated.
//
// # Pipe-delimited Conventions
//
// Lines starting with "s_" are string fields; the "s" is dropped from the key.
// Every other "key|value" line is taken as-is. Legacy key spellings are
// renamed afterwards:
//
//	_top  -> _max      rztop -> rzmax
//	_bot  -> _min      rzbot -> rzmin
//
// The rename is textual over the whole buffer, so a value containing "_top"
// is renamed too. This matches what downstream consumers have always seen.
//
// # Encodings
//
// Files are decoded with a configured charset (UTF-8 by default). Undecodable
// byte sequences become "?" and are counted so the caller can flag the file;
// misspelled station names are the usual symptom.
//
// # Merged Lookups
//
// A record enriched with dependent lookups is stored as
//
//	{...primary...}.merge({...dependent...}).merge({...})
//
// and [Parse] applies the merges left to right.
//
// # Truncated Literals
//
// Older storage cut the serialized literal at [MaxStoredLength] bytes.
// [ParseStored] detects such a cut and re-closes the literal after the last
// complete entry instead of failing the whole record.
package lookup
