package wazevoapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewModuleContextOffsetData(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    ModuleLayout
		exp  ModuleContextOffsetData
	}{
		{
			name: "empty",
			m:    ModuleLayout{},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       -1,
				ImportedMemoryBegin:    -1,
				ImportedFunctionsBegin: -1,
				GlobalsBegin:           -1,
				TypeIDs1stElement:      -1,
				TablesBegin:            -1,
				TotalSize:              8,
			},
		},
		{
			name: "local mem",
			m:    ModuleLayout{HasMemory: true},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       8,
				ImportedMemoryBegin:    -1,
				ImportedFunctionsBegin: -1,
				GlobalsBegin:           -1,
				TypeIDs1stElement:      -1,
				TablesBegin:            -1,
				TotalSize:              24,
			},
		},
		{
			name: "imported mem",
			m:    ModuleLayout{ImportedMemoryCount: 1},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       -1,
				ImportedMemoryBegin:    8,
				ImportedFunctionsBegin: -1,
				GlobalsBegin:           -1,
				TypeIDs1stElement:      -1,
				TablesBegin:            -1,
				TotalSize:              24,
			},
		},
		{
			name: "imported func",
			m:    ModuleLayout{ImportedFunctionCount: 10},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       -1,
				ImportedMemoryBegin:    -1,
				ImportedFunctionsBegin: 8,
				GlobalsBegin:           -1,
				TypeIDs1stElement:      -1,
				TablesBegin:            -1,
				TotalSize:              8 + 10*FunctionInstanceSize,
			},
		},
		{
			name: "imported func/mem",
			m:    ModuleLayout{ImportedMemoryCount: 1, ImportedFunctionCount: 10},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       -1,
				ImportedMemoryBegin:    8,
				ImportedFunctionsBegin: 24,
				GlobalsBegin:           -1,
				TypeIDs1stElement:      -1,
				TablesBegin:            -1,
				TotalSize:              24 + 10*FunctionInstanceSize,
			},
		},
		{
			name: "local mem / imported func / globals / tables",
			m: ModuleLayout{
				ImportedGlobalCount:   10,
				ImportedFunctionCount: 10,
				ImportedTableCount:    5,
				TableCount:            10,
				HasMemory:             true,
				LocalGlobalCount:      20,
			},
			exp: ModuleContextOffsetData{
				LocalMemoryBegin:       8,
				ImportedMemoryBegin:    -1,
				ImportedFunctionsBegin: 24,
				GlobalsBegin:           24 + 10*FunctionInstanceSize,
				TypeIDs1stElement:      24 + 10*FunctionInstanceSize + 8*30,
				TablesBegin:            24 + 10*FunctionInstanceSize + 8*30 + 8,
				TotalSize:              24 + 10*FunctionInstanceSize + 8*30 + 8 + 8*15,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := NewModuleContextOffsetData(tc.m)
			require.Equal(t, tc.exp, got)
		})
	}
}
