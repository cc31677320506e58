package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := map[string]Algorithm{
		"data/tags.csv":        None,
		"data/tags.csv.gz":     Gzip,
		"data/tags.csv.GZ":     Gzip,
		"data/tags.csv.zst":    Zstd,
		"data/tags.csv.lz4":    LZ4,
		"data/tags.csv.sz":     Snappy,
		"data/tags.csv.s2":     S2,
		"data/tags.csv.tar.xz": None,
	}
	for path, want := range tests {
		assert.Equal(t, want, Detect(path), path)
	}
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("tag_id,tag_name\n1,to-read\n"), 200)

	for _, algo := range []Algorithm{None, Gzip, Snappy, S2, LZ4, Zstd} {
		t.Run(string(algo), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(algo, &buf, Default)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(algo, &buf)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewReader("brotli", bytes.NewReader(nil))
	assert.Error(t, err)
	_, err = NewWriter("brotli", io.Discard, Default)
	assert.Error(t, err)
}

func TestGzipReader_RejectsGarbage(t *testing.T) {
	_, err := NewReader(Gzip, bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)
}
