package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMoneyCentavos(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"R$ 12.345,67", 1234567},
		{"R$12.345,67", 1234567},
		{"r$ 1.500,00", 150000},
		{"1.234,00", 123400},
		{"1500", 150000},
		{"0,99", 99},
		{"R$ 250.000,00", 25000000},
	}
	for _, tc := range cases {
		got, err := ParseMoneyCentavos(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseMoneyCentavosRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"R$",
		"a consultar",
		"R$ 1.500,0",
		"R$ 1.500,000",
		"-100,00",
		"12,34,56",
	} {
		_, err := ParseMoneyCentavos(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestCanonicalizeDate(t *testing.T) {
	t.Parallel()

	got, ok := CanonicalizeDate("15/08/2025")
	require.True(t, ok)
	require.Equal(t, "15-08-2025", got)

	got, ok = CanonicalizeDate(" 01-02-2024 ")
	require.True(t, ok)
	require.Equal(t, "01-02-2024", got)

	for _, in := range []string{"2025-08-15", "15.08.2025", "15/8/2025", "agosto de 2025", ""} {
		_, ok := CanonicalizeDate(in)
		require.False(t, ok, "input %q", in)
	}
}
