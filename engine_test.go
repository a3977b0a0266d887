package kqle

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secsim/go-kql/kql"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixtureEngine builds an engine with a deterministic catalog shaped
// like the production tables.
func fixtureEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{Now: func() time.Time { return testNow }})

	signIns := make([]kql.Row, 0, 100)
	for i := 0; i < 100; i++ {
		status := "Success"
		if i%5 == 0 {
			status = "Failure"
		}
		signIns = append(signIns, kql.Row{
			testNow.Add(-time.Duration(i) * 2 * time.Minute),
			fmt.Sprintf("user%d@contoso.com", i%7),
			status,
		})
	}
	require.NoError(t, e.Register("SignInLogs", kql.NewTable("SignInLogs", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "UserPrincipalName", Type: kql.TypeString},
		{Name: "Status", Type: kql.TypeString},
	}, signIns)))

	alerts := []kql.Row{}
	for _, sev := range []string{"High", "High", "Medium", "Low"} {
		alerts = append(alerts, kql.Row{testNow, "alert", sev})
	}
	require.NoError(t, e.Register("SecurityAlert", kql.NewTable("SecurityAlert", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "AlertName", Type: kql.TypeString},
		{Name: "AlertSeverity", Type: kql.TypeString},
	}, alerts)))

	procs := []kql.Row{}
	for i := 0; i < 12; i++ {
		name := "powershell.exe"
		if i%3 == 0 {
			name = "cmd.exe"
		}
		procs = append(procs, kql.Row{testNow.Add(-time.Duration(i) * time.Minute), fmt.Sprintf("HOST-%02d", i%4), name})
	}
	require.NoError(t, e.Register("DeviceProcessEvents", kql.NewTable("DeviceProcessEvents", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "DeviceName", Type: kql.TypeString},
		{Name: "FileName", Type: kql.TypeString},
	}, procs)))

	office := []kql.Row{}
	for i := 0; i < 10; i++ {
		office = append(office, kql.Row{testNow, fmt.Sprintf("user%d@contoso.com", []int{0, 0, 0, 1, 1, 2, 2, 2, 2, 3}[i])})
	}
	require.NoError(t, e.Register("OfficeActivity", kql.NewTable("OfficeActivity", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "UserId", Type: kql.TypeString},
	}, office)))

	require.NoError(t, e.Register("Empty", kql.NewTable("Empty", kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "Value", Type: kql.TypeInt},
	}, nil)))

	return e
}

func TestExecuteFailureCount(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute(`SignInLogs | where Status == "Failure" | count`)
	require.Empty(t, res.Error)
	require.Equal(t, 1, res.RowCount)
	require.Equal(t, []string{"Count"}, res.Columns)
	require.Equal(t, kql.Value(int64(20)), res.Rows[0]["Count"])
}

func TestExecuteSeveritySummary(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute("SecurityAlert | summarize c = count() by AlertSeverity | order by c desc")
	require.Empty(t, res.Error)
	require.Equal(t, []string{"AlertSeverity", "c"}, res.Columns)
	require.Equal(t, []map[string]kql.Value{
		{"AlertSeverity": "High", "c": int64(2)},
		{"AlertSeverity": "Medium", "c": int64(1)},
		{"AlertSeverity": "Low", "c": int64(1)},
	}, res.Rows)
}

func TestExecuteProjectTake(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute(`DeviceProcessEvents | where FileName == "powershell.exe" | project TimeGenerated, DeviceName | take 3`)
	require.Empty(t, res.Error)
	require.Equal(t, 3, res.RowCount)
	require.Equal(t, []string{"TimeGenerated", "DeviceName"}, res.Columns)
}

func TestExecuteTopByAggregate(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute("OfficeActivity | summarize ops = count() by UserId | top 2 by ops")
	require.Empty(t, res.Error)
	require.Equal(t, 2, res.RowCount)
	require.Equal(t, kql.Value(int64(4)), res.Rows[0]["ops"])
	require.Equal(t, "user2@contoso.com", res.Rows[0]["UserId"])
	require.Equal(t, kql.Value(int64(3)), res.Rows[1]["ops"])
	require.Equal(t, "user0@contoso.com", res.Rows[1]["UserId"])
}

func TestExecuteUnknownTable(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute("NonExistentTable | count")
	require.True(t, strings.HasPrefix(res.Error, "UnknownTable"), "got %q", res.Error)
	require.Equal(t, 0, res.RowCount)
	require.Empty(t, res.Rows)
	require.Empty(t, res.Columns)
	require.Contains(t, res.Error, "SignInLogs", "message lists available tables")
}

func TestExecuteAgoWindow(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute("SignInLogs | where TimeGenerated > ago(1h) | count")
	require.Empty(t, res.Error)
	// Rows are spaced 2 minutes apart starting at testNow; 30 fall
	// strictly inside the hour window.
	require.Equal(t, kql.Value(int64(30)), res.Rows[0]["Count"])
}

func TestExecuteEmptyQuery(t *testing.T) {
	e := fixtureEngine(t)
	for _, input := range []string{"", "   ", "\n\t"} {
		res := e.Execute(input)
		require.True(t, strings.HasPrefix(res.Error, "ParseError"), "got %q", res.Error)
		require.Equal(t, 0, res.RowCount)
	}
}

func TestExecuteSemanticErrorOnEmptyTable(t *testing.T) {
	// Unknown identifiers surface before any row is inspected, so even
	// an empty table reports them.
	e := fixtureEngine(t)
	res := e.Execute("Empty | where NoSuchColumn == 1")
	require.True(t, strings.HasPrefix(res.Error, "SemanticError"), "got %q", res.Error)
	require.Contains(t, res.Error, "NoSuchColumn")
}

func TestExecuteRowCountMatchesRows(t *testing.T) {
	e := fixtureEngine(t)
	queries := []string{
		"SignInLogs",
		"SignInLogs | take 7",
		"SignInLogs | summarize c = count() by Status",
		"SignInLogs | distinct UserPrincipalName",
		"Bogus | count",
		"",
	}
	for _, q := range queries {
		res := e.Execute(q)
		require.Equal(t, res.RowCount, len(res.Rows), "query %q", q)
	}
}

func TestExecuteTakeProperty(t *testing.T) {
	e := fixtureEngine(t)
	for _, n := range []int{0, 1, 50, 100, 1000} {
		res := e.Execute(fmt.Sprintf("SignInLogs | take %d", n))
		require.Empty(t, res.Error)
		want := n
		if want > 100 {
			want = 100
		}
		require.Equal(t, want, res.RowCount)
	}
}

func TestExecuteDistinctProperty(t *testing.T) {
	e := fixtureEngine(t)
	res := e.Execute("SignInLogs | distinct UserPrincipalName")
	require.Empty(t, res.Error)
	seen := map[kql.Value]bool{}
	for _, row := range res.Rows {
		v := row["UserPrincipalName"]
		require.False(t, seen[v], "duplicate %v", v)
		seen[v] = true
	}
	require.Equal(t, 7, res.RowCount)
	// First-seen order: user0 appears first in registration order.
	require.Equal(t, "user0@contoso.com", res.Rows[0]["UserPrincipalName"])
}

func TestExecuteSumProperty(t *testing.T) {
	e := New(Config{Now: func() time.Time { return testNow }})
	rows := []kql.Row{}
	var want int64
	for i := int64(1); i <= 50; i++ {
		rows = append(rows, kql.Row{i})
		want += i
	}
	require.NoError(t, e.Register("Numbers", kql.NewTable("Numbers", kql.Schema{
		{Name: "N", Type: kql.TypeInt},
	}, rows)))

	res := e.Execute("Numbers | summarize s = sum(N)")
	require.Empty(t, res.Error)
	require.Equal(t, kql.Value(want), res.Rows[0]["s"])
}

func TestExecuteConcurrentDeterminism(t *testing.T) {
	e := fixtureEngine(t)
	const goroutines = 8
	const iterations = 20
	queryStr := `SignInLogs | where Status == "Success" | summarize c = count() by UserPrincipalName | order by c desc | take 5`

	baseline := e.Execute(queryStr)
	require.Empty(t, baseline.Error)

	var wg sync.WaitGroup
	errs := make(chan string, goroutines*iterations)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				res := e.Execute(queryStr)
				if res.Error != baseline.Error ||
					fmt.Sprint(res.Columns) != fmt.Sprint(baseline.Columns) ||
					fmt.Sprint(res.Rows) != fmt.Sprint(baseline.Rows) {
					errs <- fmt.Sprintf("divergent result: %v", res)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestExecuteElapsedAlwaysSet(t *testing.T) {
	e := fixtureEngine(t)
	ok := e.Execute("SignInLogs | count")
	require.GreaterOrEqual(t, ok.ExecutionTimeMs, 0.0)

	bad := e.Execute("Nope | count")
	require.NotEmpty(t, bad.Error)
	require.GreaterOrEqual(t, bad.ExecutionTimeMs, 0.0)
}

func TestExecuteMaxRowsConfig(t *testing.T) {
	e := New(Config{MaxRows: 3, Now: func() time.Time { return testNow }})
	rows := []kql.Row{}
	for i := int64(0); i < 10; i++ {
		rows = append(rows, kql.Row{i})
	}
	require.NoError(t, e.Register("Numbers", kql.NewTable("Numbers", kql.Schema{
		{Name: "N", Type: kql.TypeInt},
	}, rows)))

	res := e.Execute("Numbers | count")
	require.True(t, strings.HasPrefix(res.Error, "ResourceLimit"), "got %q", res.Error)
	require.Equal(t, 0, res.RowCount)
}

func TestRegisterDuplicateSurfaces(t *testing.T) {
	e := fixtureEngine(t)
	err := e.Register("SignInLogs", kql.NewTable("SignInLogs", kql.Schema{
		{Name: "X", Type: kql.TypeInt},
	}, nil))
	require.Error(t, err)
	require.True(t, kql.ErrDuplicateTable.Is(err))
}
