package kibi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "0 bytes", FormatBytes(0))
	require.Equal(t, "1 bytes", FormatBytes(1))
	require.Equal(t, "1023 bytes", FormatBytes(1023))
	require.Equal(t, "1 KB", FormatBytes(1024))
	require.Equal(t, "1 KB", FormatBytes(1536))
	require.Equal(t, "64 KB", FormatBytes(64*1024))
	require.Equal(t, "1 MB", FormatBytes(1024*1024))
	require.Equal(t, "1023 MB", FormatBytes(1023*1024*1024))
	require.Equal(t, "1 GB", FormatBytes(1024*1024*1024))
	require.Equal(t, "1 TB", FormatBytes(1024*1024*1024*1024))
	require.Equal(t, "1 PB", FormatBytes(1024*1024*1024*1024*1024))
}

func TestParse(t *testing.T) {
	goodParse := func(expected int64, s string) {
		val, err := ParseBytes(s)
		require.NoError(t, err, s)
		require.Equal(t, expected, val, s)
	}

	goodParse(0, "0")
	goodParse(12345, "12345")
	goodParse(50, "50 bytes")
	goodParse(50, "50b")
	goodParse(50*1024, "50 kb")
	goodParse(50*1024, "50 KB")
	goodParse(50*1024, "50K")
	goodParse(64*1024, " 64 KB ")
	goodParse(2*1024*1024, "2m")
	goodParse(50*1024*1024*1024, "50 gb")
	goodParse(50*1024*1024*1024*1024, "50 tb")
	goodParse(50*1024*1024*1024*1024*1024, "50 pb")

	badParse := func(s string) {
		_, err := ParseBytes(s)
		require.ErrorIs(t, err, ErrInvalidByteSize, s)
	}

	badParse("")
	badParse("KB")
	badParse("50 pbz")
	badParse("50.1")
	badParse("-5 KB")
	badParse("99999999 PB")
}

func TestSamplesForBytes(t *testing.T) {
	require.Equal(t, 2048, SamplesForBytes(64*1024, 32))
	require.Equal(t, 2730, SamplesForBytes(64*1024, 24))
	require.Equal(t, 0, SamplesForBytes(31, 32))
	require.Equal(t, 0, SamplesForBytes(100, 0))
	require.Equal(t, 0, SamplesForBytes(-100, 1))
}
