package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinisherDecodesExitReasons(t *testing.T) {
	cases := []struct {
		magic  uint64
		reason int
	}{
		{finisherWritePass, ExitPass},
		{finisherWriteFail, ExitFail},
		{finisherWriteReset, ExitReset},
		{0x1111, ExitNone}, // unrecognized magic: ignored, finisher stays unfired
	}
	for _, c := range cases {
		f := NewFinisher()
		require.NoError(t, f.Write(0, 4, c.magic))
		require.Equal(t, c.reason, f.Reason())
	}
}

func TestFinisherAcceptsHalfwordWrites(t *testing.T) {
	f := NewFinisher()
	require.NoError(t, f.Write(0, 2, finisherWritePass))
	require.Equal(t, ExitPass, f.Reason())
}

func TestFinisherIgnoresOtherOffsets(t *testing.T) {
	f := NewFinisher()
	require.NoError(t, f.Write(8, 4, finisherWriteFail))
	require.Equal(t, ExitNone, f.Reason())
}

func TestFinisherStartsUnfired(t *testing.T) {
	f := NewFinisher()
	require.Equal(t, ExitNone, f.Reason())
}
