package wazevoapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPool_Allocate(t *testing.T) {
	p := NewPool[uint64]()
	require.Equal(t, 0, p.Allocated())

	for i := 0; i < poolPageSize+1; i++ {
		v := p.Allocate()
		*v = uint64(i)
	}
	require.Equal(t, poolPageSize+1, p.Allocated())

	for i := 0; i < poolPageSize+1; i++ {
		require.Equal(t, uint64(i), *p.View(i))
	}
}

func TestPool_Reset(t *testing.T) {
	p := NewPool[uint64]()
	v := p.Allocate()
	*v = 0xff
	p.Reset()
	require.Equal(t, 0, p.Allocated())

	v2 := p.Allocate()
	require.Equal(t, uint64(0), *v2)
}
