package wazevoapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCode_withinByte(t *testing.T) {
	require.True(t, exitCodeMax < ExitCodeMask) //nolint
}
