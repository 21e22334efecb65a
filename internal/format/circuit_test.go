package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

func TestLoadExportRoundTrip(t *testing.T) {
	src := "$ 1 5e-05 1 0 5\n" +
		"r 0 0 0 1 0 1000\n" +
		"v 0 1 0 2 0 dc 10\n" +
		"w 0 2 100 2 0\n" +
		"g 100 2 0 0 0\n"

	doc, warnings, err := Load(src, DecodeContext{Registry: registry.New()})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, doc.Elements, 4)

	out := Export(doc)
	doc2, warnings2, err := Load(out, DecodeContext{Registry: registry.New()})
	require.NoError(t, err)
	require.Empty(t, warnings2)
	require.Len(t, doc2.Elements, 4)
	require.Equal(t, doc.Header, doc2.Header)
}

func TestLoadSkipsUnknownDumpTypeWithWarning(t *testing.T) {
	src := "$ 1 5e-05 1 0 5\n" +
		"r 0 0 0 1 0 1000\n" +
		"Ω 0 0 0 1 0 99\n"

	doc, warnings, err := Load(src, DecodeContext{Registry: registry.New()})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Len(t, doc.Elements, 1)
}

func TestActionScheduleRoundTrip(t *testing.T) {
	src := "$ 1 5e-05 1 0 5\n" +
		"r 0 0 0 1 0 1000\n" +
		"% ActionSchedule\n" +
		"% AS 0.5 slider gain 2.5 1\n" +
		"% end\n"

	doc, _, err := Load(src, DecodeContext{Registry: registry.New()})
	require.NoError(t, err)
	require.Len(t, doc.Schedule.Actions(), 1)
	require.True(t, strings.Contains(Export(doc), "% AS 0.5 slider gain 2.5 1"))
}
