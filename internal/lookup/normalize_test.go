package lookup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssued = "2020-01-02 03:04"

func normalizeAndParse(t *testing.T, raw string, format Format) map[string]string {
	t.Helper()
	n, err := Normalize([]byte(raw), format, nil)
	require.NoError(t, err)
	vars, err := Parse(n.Text)
	require.NoError(t, err, "normalized text: %s", n.Text)
	return vars
}

func TestNormalize_PipeDelimited(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected map[string]string
	}{
		{
			name:     "underscore key",
			raw:      "_gmtissued|" + testIssued,
			expected: map[string]string{"_gmtissued": testIssued},
		},
		{
			name:     "string field drops s prefix",
			raw:      "s_name|London Heathrow\n",
			expected: map[string]string{"_name": "London Heathrow"},
		},
		{
			name:     "plain key",
			raw:      "station|EGLL\n",
			expected: map[string]string{"station": "EGLL"},
		},
		{
			name:     "value keeps later pipes",
			raw:      "_wx|RA|BR\n",
			expected: map[string]string{"_wx": "RA|BR"},
		},
		{
			name:     "quotes hashes and backslashes survive",
			raw:      "s_remark|He said \"hi\" #1 C:\\temp\n",
			expected: map[string]string{"_remark": `He said "hi" #1 C:\temp`},
		},
		{
			name:     "crlf line endings",
			raw:      "_date0|2010-03-15\r\n_time0|14:50\r\n",
			expected: map[string]string{"_date0": "2010-03-15", "_time0": "14:50"},
		},
		{
			name:     "blank lines ignored",
			raw:      "\n_a|1\n\n_b|2\n",
			expected: map[string]string{"_a": "1", "_b": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := normalizeAndParse(t, tt.raw, FormatLookup)
			if diff := cmp.Diff(tt.expected, vars); diff != "" {
				t.Fatalf("vars mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_PipeDelimitedKeyRenames(t *testing.T) {
	raw := "_ptemp_top_1|14\n_ptemp_bot_1|3\nrztop|1200\nrzbot|300\n"
	vars := normalizeAndParse(t, raw, FormatLookup)

	assert.Equal(t, "14", vars["_ptemp_max_1"])
	assert.Equal(t, "3", vars["_ptemp_min_1"])
	assert.Equal(t, "1200", vars["rzmax"])
	assert.Equal(t, "300", vars["rzmin"])

	for _, old := range []string{"_ptemp_top_1", "_ptemp_bot_1", "rztop", "rzbot"} {
		_, ok := vars[old]
		assert.False(t, ok, "legacy key %s should be renamed", old)
	}
}

func TestNormalize_PipeDelimitedRenameTouchesValues(t *testing.T) {
	vars := normalizeAndParse(t, "s_desc|cloud_top\n", FormatLookup)
	assert.Equal(t, "cloud_max", vars["_desc"])
}

func TestNormalize_PHP(t *testing.T) {
	for _, prologue := range []string{"<?\n$vars = array(\n", "<?$vars = array(\n"} {
		raw := prologue +
			"\"_gmtissued\" => \"2010-03-15 12:00\",\n" +
			"'_temp' => 14,\n" +
			");\n?>\n"

		vars := normalizeAndParse(t, raw, FormatPHP)
		assert.Equal(t, map[string]string{"_gmtissued": "2010-03-15 12:00", "_temp": "14"}, vars)
	}
}

func TestNormalize_RubyHashPassThrough(t *testing.T) {
	raw := "{\"_gmtissued\" => \"2010-03-15 12:00\"}"
	n, err := Normalize([]byte(raw), FormatRubyHash, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, n.Text)
	assert.Zero(t, n.Replaced)
}

func TestNormalize_UnknownFormat(t *testing.T) {
	_, err := Normalize([]byte("x"), Format("yaml"), nil)
	require.Error(t, err)
}

func TestNormalize_ReportsEncodingReplacements(t *testing.T) {
	n, err := Normalize([]byte("s_name|Z\xfcrich\n"), FormatLookup, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Replaced)

	vars, err := Parse(n.Text)
	require.NoError(t, err)
	assert.Equal(t, "Z?rich", vars["_name"])
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := "s_name|EGLL\n_ptemp_top_1|14\n_gmtissued|" + testIssued + "\n"
	first := normalizeAndParse(t, raw, FormatLookup)
	second := normalizeAndParse(t, raw, FormatLookup)
	assert.Equal(t, first, second)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "EGLL.lookup")
	require.NoError(t, os.WriteFile(path, []byte("_gmtissued|"+testIssued+"\n"), 0o600))

	n, err := ReadFile(path, FormatLookup, nil)
	require.NoError(t, err)
	vars, err := Parse(n.Text)
	require.NoError(t, err)
	assert.Equal(t, testIssued, vars["_gmtissued"])

	_, err = ReadFile(filepath.Join(dir, "missing.lookup"), FormatLookup, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
