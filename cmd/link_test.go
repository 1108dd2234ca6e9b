package cmd

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemashushu/ancvm/loader"
	"github.com/hemashushu/ancvm/vm"
)

func TestLinkCommandWritesReportToStdout(t *testing.T) {
	t.Parallel()
	gs, outBuf, _ := NewTestGlobalState()

	code := new(asm).op(vm.OpImmI32).i32(1).op(vm.OpEnd).code()
	writeImage(t, gs, "app.ancm",
		typeSection([2][]loader.ValueType{nil, {loader.ValueTypeI32}}),
		functionSection(fn{typeIndex: 0, code: code}),
		commonPropertySection("app", 0),
	)

	gs.Args = []string{"ancvm", "link", "app.ancm"}
	assert.Equal(t, 0, Execute(gs))

	var report linkReport
	require.NoError(t, json.Unmarshal(outBuf.Bytes(), &report))
	assert.Equal(t, 1, report.FunctionCount)
	assert.Equal(t, uint32(0), report.EntryFunctionPublicIndex)
}

func TestLinkCommandWritesReportToFile(t *testing.T) {
	t.Parallel()
	gs, _, _ := NewTestGlobalState()

	code := new(asm).op(vm.OpImmI32).i32(1).op(vm.OpEnd).code()
	writeImage(t, gs, "app.ancm",
		typeSection([2][]loader.ValueType{nil, {loader.ValueTypeI32}}),
		functionSection(fn{typeIndex: 0, code: code}),
		commonPropertySection("app", 0),
	)

	gs.Args = []string{"ancvm", "link", "app.ancm", "-o", "report.json"}
	assert.Equal(t, 0, Execute(gs))

	data, err := afero.ReadFile(gs.FS, "report.json")
	require.NoError(t, err)
	var report linkReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, []string{"app.ancm"}, report.Modules)
}
