// Package seed builds the synthetic log table catalog. Generation is
// deterministic: a fixed rand seed and a caller-supplied reference
// instant make repeated loads identical, so tests against the seeded
// catalog are reproducible.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/go-kql/kql"
)

var users = []string{
	"alice.johnson@contoso.com",
	"bob.smith@contoso.com",
	"carol.white@contoso.com",
	"david.brown@contoso.com",
	"eve.davis@contoso.com",
}

var devices = []string{
	"DESKTOP-FIN-001",
	"DESKTOP-IT-042",
	"LAPTOP-EXEC-001",
	"SRV-DC-01",
	"SRV-FILE-02",
}

var locations = []string{
	"New York, US",
	"London, UK",
	"Bucharest, Romania",
	"Toronto, Canada",
	"Sydney, Australia",
}

var processes = []string{
	"powershell.exe",
	"cmd.exe",
	"explorer.exe",
	"chrome.exe",
	"outlook.exe",
	"svchost.exe",
	"rundll32.exe",
	"mshta.exe",
}

// Register builds all eight tables relative to ref and registers them.
func Register(reg *kql.Registry, ref time.Time) error {
	g := &generator{rng: rand.New(rand.NewSource(42)), ref: ref.UTC()}
	tables := []*kql.Table{
		g.signInLogs(100),
		g.securityEvent(150),
		g.deviceProcessEvents(200),
		g.deviceNetworkEvents(150),
		g.deviceLogonEvents(100),
		g.emailEvents(80),
		g.officeActivity(100),
		g.securityAlert(30),
	}
	for _, t := range tables {
		if err := reg.Register(t.Name, t); err != nil {
			return err
		}
	}
	return nil
}

type generator struct {
	rng *rand.Rand
	ref time.Time
}

// randomTime returns an instant uniformly within the given number of
// hours before the reference instant.
func (g *generator) randomTime(hoursAgo int) time.Time {
	secs := g.rng.Float64() * float64(hoursAgo) * 3600
	return g.ref.Add(-time.Duration(secs * float64(time.Second)))
}

func (g *generator) pick(options []string) string {
	return options[g.rng.Intn(len(options))]
}

func (g *generator) pickInt(options []int64) int64 {
	return options[g.rng.Intn(len(options))]
}

func (g *generator) shortName(user string) string {
	for i := 0; i < len(user); i++ {
		if user[i] == '@' {
			return user[:i]
		}
	}
	return user
}

func (g *generator) guid() string {
	var b [16]byte
	g.rng.Read(b[:])
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return uuid.Nil.String()
	}
	return id.String()
}

func (g *generator) internalIP() string {
	return fmt.Sprintf("10.1.%d.%d", g.rng.Intn(11), 1+g.rng.Intn(254))
}

func (g *generator) externalIP() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+g.rng.Intn(254), 1+g.rng.Intn(254), 1+g.rng.Intn(254), 1+g.rng.Intn(254))
}

func (g *generator) signInLogs(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "UserPrincipalName", Type: kql.TypeString},
		{Name: "AppDisplayName", Type: kql.TypeString},
		{Name: "IPAddress", Type: kql.TypeString},
		{Name: "Location", Type: kql.TypeString},
		{Name: "Status", Type: kql.TypeString},
		{Name: "RiskLevelDuringSignIn", Type: kql.TypeString},
		{Name: "ConditionalAccessStatus", Type: kql.TypeString},
		{Name: "DeviceDetail", Type: kql.TypeString},
		{Name: "CorrelationId", Type: kql.TypeString},
	}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		status := "Success"
		if g.rng.Float64() <= 0.2 {
			status = "Failure"
		}
		ip := g.internalIP()
		if g.rng.Float64() > 0.7 {
			ip = g.externalIP()
		}
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(users),
			g.pick([]string{"Microsoft Office", "Azure Portal", "Teams", "SharePoint"}),
			ip,
			g.pick(locations),
			status,
			g.pick([]string{"none", "none", "none", "low", "medium", "high"}),
			g.pick([]string{"success", "notApplied", "failure"}),
			g.pick([]string{"Windows 11", "Windows 10", "macOS", "iOS"}),
			g.guid(),
		})
	}
	return kql.NewTable("SignInLogs", schema, rows)
}

func (g *generator) securityEvent(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "EventID", Type: kql.TypeInt},
		{Name: "Computer", Type: kql.TypeString},
		{Name: "SubjectUserName", Type: kql.TypeString},
		{Name: "TargetUserName", Type: kql.TypeString},
		{Name: "IpAddress", Type: kql.TypeString},
		{Name: "LogonType", Type: kql.TypeInt},
		{Name: "AuthenticationPackageName", Type: kql.TypeString},
		{Name: "Activity", Type: kql.TypeString},
	}
	eventIDs := []int64{4624, 4625, 4648, 4656, 4720, 4732, 4768, 4769}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pickInt(eventIDs),
			g.pick(devices),
			g.shortName(g.pick(users)),
			g.shortName(g.pick(users)),
			g.internalIP(),
			g.pickInt([]int64{2, 3, 10}),
			g.pick([]string{"NTLM", "Kerberos", "Negotiate"}),
			g.pick([]string{
				"An account was successfully logged on",
				"An account failed to log on",
				"A logon was attempted using explicit credentials",
				"A handle to an object was requested",
			}),
		})
	}
	return kql.NewTable("SecurityEvent", schema, rows)
}

func (g *generator) deviceProcessEvents(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "DeviceName", Type: kql.TypeString},
		{Name: "AccountName", Type: kql.TypeString},
		{Name: "FileName", Type: kql.TypeString},
		{Name: "ProcessCommandLine", Type: kql.TypeString},
		{Name: "InitiatingProcessFileName", Type: kql.TypeString},
		{Name: "SHA256", Type: kql.TypeString},
		{Name: "ProcessId", Type: kql.TypeInt},
	}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		proc := g.pick(processes)
		args := g.pick([]string{"", "-enc abc123", "/c whoami", "--hidden"})
		cmdline := proc
		if args != "" {
			cmdline = proc + " " + args
		}
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(devices),
			g.shortName(g.pick(users)),
			proc,
			cmdline,
			g.pick(processes),
			fmt.Sprintf("%x%x", g.rng.Uint64(), g.rng.Uint64()),
			int64(1000 + g.rng.Intn(9000)),
		})
	}
	return kql.NewTable("DeviceProcessEvents", schema, rows)
}

func (g *generator) deviceNetworkEvents(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "DeviceName", Type: kql.TypeString},
		{Name: "AccountName", Type: kql.TypeString},
		{Name: "RemoteIPAddress", Type: kql.TypeString},
		{Name: "RemotePort", Type: kql.TypeInt},
		{Name: "LocalIPAddress", Type: kql.TypeString},
		{Name: "LocalPort", Type: kql.TypeInt},
		{Name: "Protocol", Type: kql.TypeString},
		{Name: "ActionType", Type: kql.TypeString},
	}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		remote := g.internalIP()
		if g.rng.Float64() > 0.5 {
			remote = g.externalIP()
		}
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(devices),
			g.shortName(g.pick(users)),
			remote,
			g.pickInt([]int64{80, 443, 445, 3389, 8080, 22, 53}),
			g.internalIP(),
			int64(49152 + g.rng.Intn(65535-49152)),
			g.pick([]string{"Tcp", "Udp"}),
			g.pick([]string{"ConnectionSuccess", "ConnectionFailed", "ConnectionFound"}),
		})
	}
	return kql.NewTable("DeviceNetworkEvents", schema, rows)
}

func (g *generator) deviceLogonEvents(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "DeviceName", Type: kql.TypeString},
		{Name: "AccountName", Type: kql.TypeString},
		{Name: "AccountDomain", Type: kql.TypeString},
		{Name: "LogonType", Type: kql.TypeString},
		{Name: "ActionType", Type: kql.TypeString},
		{Name: "RemoteIPAddress", Type: kql.TypeString},
		{Name: "IsLocalAdmin", Type: kql.TypeBool},
	}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(devices),
			g.shortName(g.pick(users)),
			"CONTOSO",
			g.pick([]string{"Interactive", "Network", "RemoteInteractive"}),
			g.pick([]string{"LogonSuccess", "LogonFailed"}),
			g.internalIP(),
			g.rng.Intn(2) == 0,
		})
	}
	return kql.NewTable("DeviceLogonEvents", schema, rows)
}

func (g *generator) emailEvents(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "SenderFromAddress", Type: kql.TypeString},
		{Name: "RecipientEmailAddress", Type: kql.TypeString},
		{Name: "Subject", Type: kql.TypeString},
		{Name: "DeliveryAction", Type: kql.TypeString},
		{Name: "ThreatTypes", Type: kql.TypeString},
		{Name: "AttachmentCount", Type: kql.TypeInt},
		{Name: "UrlCount", Type: kql.TypeInt},
	}
	subjects := []string{
		"Q4 Invoice - Action Required",
		"Meeting tomorrow",
		"Please review and sign",
		"Urgent: Payment details updated",
		"Your account security",
		"Weekly report",
	}
	senders := append(append([]string{}, users...), "attacker@evil.com", "noreply@phish.net")
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(senders),
			g.pick(users),
			g.pick(subjects),
			g.pick([]string{"Delivered", "Blocked", "Quarantined"}),
			g.pick([]string{"", "", "", `["Phish"]`, `["Malware"]`}),
			int64(g.rng.Intn(4)),
			int64(g.rng.Intn(6)),
		})
	}
	return kql.NewTable("EmailEvents", schema, rows)
}

func (g *generator) officeActivity(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "UserId", Type: kql.TypeString},
		{Name: "Operation", Type: kql.TypeString},
		{Name: "ClientIPAddress", Type: kql.TypeString},
		{Name: "Workload", Type: kql.TypeString},
		{Name: "ObjectId", Type: kql.TypeString},
	}
	operations := []string{
		"FileDownloaded", "FileUploaded", "FilePreviewed",
		"MailItemsAccessed", "New-InboxRule", "SearchQueryInitiatedExchange",
		"UserLoggedIn", "FileDeleted",
	}
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		ip := g.internalIP()
		if g.rng.Float64() > 0.6 {
			ip = g.externalIP()
		}
		rows = append(rows, kql.Row{
			g.randomTime(48),
			g.pick(users),
			g.pick(operations),
			ip,
			g.pick([]string{"SharePoint", "Exchange", "OneDrive", "Teams"}),
			"/sites/contoso/" + g.guid(),
		})
	}
	return kql.NewTable("OfficeActivity", schema, rows)
}

func (g *generator) securityAlert(n int) *kql.Table {
	schema := kql.Schema{
		{Name: "TimeGenerated", Type: kql.TypeDateTime},
		{Name: "AlertName", Type: kql.TypeString},
		{Name: "AlertSeverity", Type: kql.TypeString},
		{Name: "Category", Type: kql.TypeString},
		{Name: "CompromisedEntity", Type: kql.TypeString},
		{Name: "ProviderName", Type: kql.TypeString},
		{Name: "Status", Type: kql.TypeString},
		{Name: "SystemAlertId", Type: kql.TypeString},
	}
	alerts := [][3]string{
		{"Suspicious PowerShell command line", "High", "Execution"},
		{"Credential dumping via comsvcs.dll", "High", "CredentialAccess"},
		{"Phishing email detected", "Medium", "InitialAccess"},
		{"Suspicious inbox rule created", "High", "Persistence"},
		{"Unusual sign-in from unfamiliar location", "Medium", "InitialAccess"},
		{"Pass-the-Hash attack detected", "High", "LateralMovement"},
		{"Mass file deletion detected", "Medium", "Impact"},
		{"Encoded PowerShell execution", "Medium", "Execution"},
	}
	entities := append(append([]string{}, devices...), users...)
	rows := make([]kql.Row, 0, n)
	for i := 0; i < n; i++ {
		alert := alerts[g.rng.Intn(len(alerts))]
		rows = append(rows, kql.Row{
			g.randomTime(48),
			alert[0],
			alert[1],
			alert[2],
			g.pick(entities),
			g.pick([]string{
				"Microsoft Defender for Endpoint",
				"Microsoft Defender for Identity",
				"Microsoft Defender for Office 365",
			}),
			g.pick([]string{"New", "InProgress", "Resolved"}),
			g.guid(),
		})
	}
	return kql.NewTable("SecurityAlert", schema, rows)
}
