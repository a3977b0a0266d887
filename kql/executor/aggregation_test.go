package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secsim/go-kql/kql"
)

func TestSummarizeCountByGroup(t *testing.T) {
	rs := run(t, "Events | summarize c = count() by Device")
	require.Equal(t, []string{"Device", "c"}, rs.Schema.Names())
	// Groups appear in first-seen order.
	require.Equal(t, []kql.Row{
		{"SRV-01", int64(2)},
		{"SRV-02", int64(2)},
		{"SRV-03", int64(1)},
	}, rs.Rows)
}

func TestSummarizeMultipleKeys(t *testing.T) {
	rs := run(t, "Events | summarize c = count() by Device, User")
	require.Equal(t, 4, rs.Len())
	require.Equal(t, kql.Row{"SRV-01", "alice", int64(2)}, rs.Rows[0])
}

func TestSummarizeSum(t *testing.T) {
	rs := run(t, "Events | summarize total = sum(Port)")
	require.Equal(t, []kql.Row{{int64(443 + 80 + 443 + 22 + 443)}}, rs.Rows)
}

func TestSummarizeSumSkipsNulls(t *testing.T) {
	// carol's Score is null; sum covers the other four.
	rs := run(t, "Events | summarize s = sum(Score)")
	require.InDelta(t, 7.5, rs.Rows[0][0].(float64), 1e-9)
}

func TestSummarizeAvgMinMax(t *testing.T) {
	rs := run(t, "Events | summarize a = avg(Score), lo = min(Score), hi = max(Score)")
	require.InDelta(t, 7.5/4, rs.Rows[0][0].(float64), 1e-9)
	require.Equal(t, kql.Value(0.5), rs.Rows[0][1])
	require.Equal(t, kql.Value(3.5), rs.Rows[0][2])
}

func TestSummarizeIntAvgTruncates(t *testing.T) {
	rs := run(t, "Events | summarize a = avg(Port)")
	require.Equal(t, kql.Value(int64((443+80+443+22+443)/5)), rs.Rows[0][0])
}

func TestSummarizeMinMaxDatetime(t *testing.T) {
	rs := run(t, "Events | summarize first = min(TimeGenerated), last = max(TimeGenerated)")
	require.Equal(t, kql.Value(fixedNow.Add(-400*time.Minute)), rs.Rows[0][0])
	require.Equal(t, kql.Value(fixedNow.Add(-10*time.Minute)), rs.Rows[0][1])
}

func TestSummarizeDcount(t *testing.T) {
	rs := run(t, "Events | summarize d = dcount(Device), u = dcount(User)")
	require.Equal(t, []kql.Row{{int64(3), int64(3)}}, rs.Rows)
}

func TestSummarizeMakeList(t *testing.T) {
	rs := run(t, `Events | where Device == "SRV-01" | summarize users = make_list(User)`)
	require.Equal(t, kql.Value("alice, alice"), rs.Rows[0][0])
}

func TestSummarizeNoByOnEmptyInput(t *testing.T) {
	// Without grouping keys there is exactly one output row even when
	// no rows matched.
	rs := run(t, `Events | where Device == "nope" | summarize c = count(), s = sum(Port)`)
	require.Equal(t, 1, rs.Len())
	require.Equal(t, kql.Value(int64(0)), rs.Rows[0][0])
	require.Nil(t, rs.Rows[0][1], "sum over no rows is null")
}

func TestSummarizeByOnEmptyInput(t *testing.T) {
	rs := run(t, `Events | where Device == "nope" | summarize c = count() by Device`)
	require.Equal(t, 0, rs.Len())
}

func TestSummarizeThenSort(t *testing.T) {
	rs := run(t, "Events | summarize c = count() by User | order by c desc")
	require.Equal(t, []kql.Row{
		{"alice", int64(3)},
		{"bob", int64(1)},
		{"carol", int64(1)},
	}, rs.Rows)
}

func TestSummarizeGroupByDatetime(t *testing.T) {
	// Grouping on a datetime column exercises hash normalization.
	rs := run(t, "Events | extend Hour = bin(TimeGenerated, 1h) | summarize c = count() by Hour")
	total := int64(0)
	for _, row := range rs.Rows {
		total += row[1].(int64)
	}
	require.Equal(t, int64(5), total)
	require.True(t, rs.Len() > 1, "events span multiple hours")
}
