package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bakehouse/internal/ledger"
)

func TestRunWithGolden_CroissantDay(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/croissant_day.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{
			Step: 1, Op: OpAdjust, Actor: "owner", Outcome: OutcomeOK,
			Movements: []TraceMovement{{
				Seq: 4, Type: ledger.MovementAdjustment, Item: "FLOUR", Location: "main",
				Delta: ledger.MustParseQuantity("-0.25"), Balance: ledger.MustParseQuantity("1.75"),
			}},
		},
		{Step: 2, Op: OpCountSubmit, Actor: "sam", Outcome: OutcomeOK, Detail: map[string]string{"net_cents": "-24", "flagged": "1"}},
	}

	got, err := MarshalTrace("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","trace":[`+
			`{"actor":"owner","movements":[{"balance":"1.75","delta":"-0.25","item":"FLOUR","location":"main","seq":4,"type":"adjustment"}],"op":"adjust","outcome":"ok","step":1},`+
			`{"actor":"sam","detail":{"flagged":"1","net_cents":"-24"},"op":"count_submit","outcome":"ok","step":2}]}`,
		string(got))
}
