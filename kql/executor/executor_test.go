package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/annotations"
	"github.com/secsim/go-kql/kql/parser"
	"github.com/secsim/go-kql/kql/planner"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func eventsTable() *kql.Table {
	at := func(minsAgo int) time.Time {
		return fixedNow.Add(-time.Duration(minsAgo) * time.Minute)
	}
	return kql.NewTable("Events", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "Device", Type: kql.TypeString},
		{Name: "User", Type: kql.TypeString},
		{Name: "Port", Type: kql.TypeInt},
		{Name: "Score", Type: kql.TypeReal},
		{Name: "Cmd", Type: kql.TypeString},
	}, []kql.Row{
		{at(10), "SRV-01", "alice", int64(443), 1.5, "powershell.exe -enc abc"},
		{at(30), "SRV-02", "bob", int64(80), 2.0, "cmd.exe /c whoami"},
		{at(90), "SRV-01", "alice", int64(443), 0.5, "explorer.exe"},
		{at(200), "SRV-03", "carol", int64(22), nil, "svchost.exe"},
		{at(400), "SRV-02", "alice", int64(443), 3.5, "powershell.exe"},
	})
}

func run(t *testing.T, input string) *RowSet {
	t.Helper()
	rs, err := runErr(t, input)
	require.NoError(t, err)
	return rs
}

func runErr(t *testing.T, input string) (*RowSet, error) {
	t.Helper()
	return runWith(t, input, Options{})
}

func runWith(t *testing.T, input string, opts Options) (*RowSet, error) {
	t.Helper()
	reg := kql.NewRegistry()
	require.NoError(t, reg.Register("Events", eventsTable()))
	require.NoError(t, reg.Register("Extra", kql.NewTable("Extra", kql.Schema{
		{Name: "Device", Type: kql.TypeString},
		{Name: "Region", Type: kql.TypeString},
	}, []kql.Row{
		{"SRV-09", "eu-west"},
		{"SRV-01", "us-east"},
	})))

	q, err := parser.Parse(input)
	require.NoError(t, err)
	plan, err := planner.New(reg).Plan(q)
	require.NoError(t, err)
	return New(opts).Execute(plan, fixedNow)
}

func column(rs *RowSet, name string) []kql.Value {
	idx := rs.Schema.IndexOf(name)
	out := make([]kql.Value, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row[idx]
	}
	return out
}

func TestExecuteBareTable(t *testing.T) {
	rs := run(t, "Events")
	require.Equal(t, 5, rs.Len())
	require.Equal(t, []string{"TimeGenerated", "Device", "User", "Port", "Score", "Cmd"}, rs.Schema.Names())
}

func TestExecuteWhere(t *testing.T) {
	rs := run(t, `Events | where Device == "SRV-01"`)
	require.Equal(t, 2, rs.Len())
	require.Equal(t, []kql.Value{"SRV-01", "SRV-01"}, column(rs, "Device"))
}

func TestExecuteWhereNullIsFalse(t *testing.T) {
	// carol's Score is null; the comparison yields null, the row drops.
	rs := run(t, "Events | where Score > 0.0")
	require.Equal(t, 4, rs.Len())

	rs = run(t, "Events | where not (Score > 0.0)")
	require.Equal(t, 0, rs.Len())
}

func TestExecuteProjectOrderAndRename(t *testing.T) {
	rs := run(t, "Events | project Host = Device, Port")
	require.Equal(t, []string{"Host", "Port"}, rs.Schema.Names())
	require.Equal(t, kql.Row{"SRV-01", int64(443)}, rs.Rows[0])
}

func TestExecuteExtendSeesEarlierAssignments(t *testing.T) {
	rs := run(t, "Events | extend Doubled = Port * 2, Quadrupled = Doubled * 2 | project Quadrupled")
	require.Equal(t, kql.Value(int64(1772)), rs.Rows[0][0])
}

func TestExecuteExtendOverwrite(t *testing.T) {
	rs := run(t, "Events | extend Port = Port + 1 | project Port")
	require.Equal(t, kql.Value(int64(444)), rs.Rows[0][0])
}

func TestExecuteTake(t *testing.T) {
	require.Equal(t, 3, run(t, "Events | take 3").Len())
	require.Equal(t, 5, run(t, "Events | take 100").Len())
	require.Equal(t, 0, run(t, "Events | take 0").Len())
	require.Equal(t, 2, run(t, "Events | limit 2").Len())
}

func TestExecuteTakePreservesOrder(t *testing.T) {
	rs := run(t, "Events | take 2")
	require.Equal(t, []kql.Value{"SRV-01", "SRV-02"}, column(rs, "Device"))
}

func TestExecuteCount(t *testing.T) {
	rs := run(t, "Events | count")
	require.Equal(t, []string{"Count"}, rs.Schema.Names())
	require.Equal(t, []kql.Row{{int64(5)}}, rs.Rows)
}

func TestExecuteCountAfterFilter(t *testing.T) {
	rs := run(t, `Events | where User == "alice" | count`)
	require.Equal(t, kql.Value(int64(3)), rs.Rows[0][0])
}

func TestExecuteDistinct(t *testing.T) {
	rs := run(t, "Events | distinct Device")
	require.Equal(t, []kql.Value{"SRV-01", "SRV-02", "SRV-03"}, column(rs, "Device"))

	rs = run(t, "Events | distinct Device, User")
	require.Equal(t, 4, rs.Len())
	require.Equal(t, kql.Row{"SRV-01", "alice"}, rs.Rows[0])
	require.Equal(t, kql.Row{"SRV-02", "alice"}, rs.Rows[3])
}

func TestExecuteTopDefaultsDescending(t *testing.T) {
	rs := run(t, "Events | top 2 by Port")
	require.Equal(t, []kql.Value{int64(443), int64(443)}, column(rs, "Port"))

	rs = run(t, "Events | top 2 by Port asc")
	require.Equal(t, []kql.Value{int64(22), int64(80)}, column(rs, "Port"))
}

func TestExecuteUnionFillsMissingWithNull(t *testing.T) {
	rs := run(t, "union Events, Extra | project Device, Region")
	require.Equal(t, 7, rs.Len())
	require.Nil(t, rs.Rows[0][1], "Events rows have no Region")
	require.Equal(t, kql.Row{"SRV-09", "eu-west"}, rs.Rows[5])
}

func TestExecuteAgo(t *testing.T) {
	rs := run(t, "Events | where TimeGenerated > ago(1h) | count")
	require.Equal(t, kql.Value(int64(2)), rs.Rows[0][0])
}

func TestExecuteMaxRows(t *testing.T) {
	_, err := runWith(t, "Events | count", Options{MaxRows: 3})
	require.Error(t, err)
	require.True(t, kql.ErrResourceLimit.Is(err))
	require.Contains(t, err.Error(), "ResourceLimit")

	rs, err := runWith(t, "Events | count", Options{MaxRows: 10})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
}

func TestExecuteAnnotations(t *testing.T) {
	var events []annotations.Event
	opts := Options{Handler: func(e annotations.Event) { events = append(events, e) }}

	_, err := runWith(t, `Events | where Device == "SRV-01" | count`, opts)
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, annotations.OperatorApplied, events[0].Name)
	require.Equal(t, "where", events[0].Data["operator"])
	require.Equal(t, 5, events[0].Data["rows_in"])
	require.Equal(t, 2, events[0].Data["rows_out"])
	require.Equal(t, "count", events[1].Data["operator"])
}

func TestExecuteDoesNotMutateRegisteredTables(t *testing.T) {
	reg := kql.NewRegistry()
	require.NoError(t, reg.Register("Events", eventsTable()))

	runOnce := func(input string) {
		q, err := parser.Parse(input)
		require.NoError(t, err)
		plan, err := planner.New(reg).Plan(q)
		require.NoError(t, err)
		_, err = New(Options{}).Execute(plan, fixedNow)
		require.NoError(t, err)
	}

	runOnce("Events | extend Port = Port * 100 | order by Port")
	runOnce("Events | order by Device desc | take 1")

	table, ok := reg.Get("Events")
	require.True(t, ok)
	require.Equal(t, kql.Value(int64(443)), table.Rows[0][3])
	require.Equal(t, kql.Value("SRV-01"), table.Rows[0][1])
}
