package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer

	got, err := GetSimpleText(reader("  hello world \n"), "Say something", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Contains(t, out.String(), "Say something")
}

func TestGetSimpleText_EOFWithPartialLine(t *testing.T) {
	var out bytes.Buffer

	got, err := GetSimpleText(reader("partial"), "p", &out)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)
}

func TestGetSimpleText_EOFEmpty(t *testing.T) {
	var out bytes.Buffer

	_, err := GetSimpleText(reader(""), "p", &out)
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12.50", want: 1250},
		{in: "12.5", want: 1250},
		{in: "12", want: 1200},
		{in: "0.07", want: 7},
		{in: "-3.25", want: -325},
		{in: "12.345", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.50", FormatAmount(1250))
	assert.Equal(t, "0.07", FormatAmount(7))
	assert.Equal(t, "-3.25", FormatAmount(-325))
}

func TestGetDate_Explicit(t *testing.T) {
	var out bytes.Buffer
	def := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := GetDate(reader("2025-01-15\n"), "Date", def, &out)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestGetDate_Default(t *testing.T) {
	var out bytes.Buffer
	def := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	got, err := GetDate(reader("\n"), "Date", def, &out)
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestGetDate_Invalid(t *testing.T) {
	var out bytes.Buffer

	_, err := GetDate(reader("15/01/2025\n"), "Date", time.Now(), &out)
	require.Error(t, err)
}

func TestGetPassword_UsesSeam(t *testing.T) {
	orig := readPassword
	defer func() { readPassword = orig }()
	readPassword = func(fd int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	pw, err := GetPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Contains(t, out.String(), "Enter password")
}
