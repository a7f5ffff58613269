package util_test

import (
	"bytes"
	"testing"

	"github.com/gruntwork-io/actiontree/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedWriter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		prefix   string
		expected string
		writes   []string
	}{
		{prefix: "[a] ", writes: []string{"one\ntwo\n"}, expected: "[a] one\n[a] two\n"},
		{prefix: "[a] ", writes: []string{"par", "tial\n", "next"}, expected: "[a] partial\n[a] next"},
		{prefix: "", writes: []string{"plain\n"}, expected: "plain\n"},
	}

	for _, tc := range testCases {
		var buf bytes.Buffer

		w := util.PrefixedWriter(&buf, tc.prefix)

		for _, s := range tc.writes {
			n, err := w.Write([]byte(s))
			require.NoError(t, err)
			assert.Equal(t, len(s), n)
		}

		assert.Equal(t, tc.expected, buf.String())
	}
}

func TestChunkWriter(t *testing.T) {
	t.Parallel()

	var chunks [][]byte

	w := util.NewChunkWriter(func(p []byte) {
		chunks = append(chunks, p)
	})

	data := []byte("hello")
	_, err := w.Write(data)
	require.NoError(t, err)

	data[0] = 'j'

	_, err = w.Write(nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())

	n, err := w.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", string(chunks[0]))
}
