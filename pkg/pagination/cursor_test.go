package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name   string
		cursor PageCursor
	}{
		{name: "zero page", cursor: PageCursor{QueryHash: "abc123", Page: 0}},
		{name: "later page", cursor: PageCursor{QueryHash: "deadbeef", Page: 4}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			encoded, err := Encode(test.cursor)
			require.NoError(t, err)
			assert.NotEmpty(t, encoded)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, test.cursor, decoded)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("not-a-valid-cursor!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
