package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", DefaultMaxInputSize - 1, false},
		{"Exact Limit", DefaultMaxInputSize, false},
		{"Over Limit", DefaultMaxInputSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Input(strings.Repeat("a", tt.size), 0)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := Input("Contribute $500", 5)
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestInput_ControlChars(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"Normal Text", "Contribute $500", "Contribute $500"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Surrounding Space", "  raise my limit \n", "raise my limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Input(tt.input, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInput_Rejects(t *testing.T) {
	_, err := Input("bad \xff byte", 0)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = Input(" \x07 ", 0)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
