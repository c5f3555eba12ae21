package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bensku/zoneport/zonefile"
	"go.yaml.in/yaml/v3"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testZone = `$ORIGIN example.com.
$TTL 3600
www  IN A  192.0.2.1
@    IN MX 10 mail
`

func TestParseCommand(t *testing.T) {
	path := writeFile(t, "example.com.zone", testZone)

	var parsed parseOutput
	if err := json.Unmarshal([]byte(run(t, "parse", "--format", "json", path)), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Origin != "example.com" || len(parsed.Records) != 2 {
		t.Fatal("unexpected parse output", parsed)
	}
	if parsed.Records[1].Content != "mail.example.com" || parsed.Records[1].Priority != 10 {
		t.Fatal("unexpected MX record", parsed.Records[1])
	}

	var fromYaml parseOutput
	if err := yaml.Unmarshal([]byte(run(t, "parse", "--format", "yaml", path)), &fromYaml); err != nil {
		t.Fatal(err)
	}
	if fromYaml.DefaultTTL != 3600 || len(fromYaml.Records) != 2 {
		t.Fatal("unexpected yaml output", fromYaml)
	}
}

func TestLogsStayOffStdout(t *testing.T) {
	path := writeFile(t, "example.com.zone", testZone)

	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = writer
	defer func() { os.Stdout = stdout }()
	defer rootCmd.PersistentFlags().Set("log-level", "INFO")

	// Unknown level makes setupLogging warn
	out := run(t, "parse", "--log-level", "LOUD", path)
	os.Stdout = stdout
	writer.Close()
	leaked, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	if len(leaked) != 0 {
		t.Fatalf("stdout got log output: %q", leaked)
	}

	var parsed parseOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatal("parse output is not clean JSON", err, out)
	}
}

func TestGenerateCommand(t *testing.T) {
	rows, err := json.Marshal([]zonefile.Record{
		{Name: "www.example.com", Type: "A", Content: "192.0.2.1", TTL: 300},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "rows.json", string(rows))

	out := run(t, "generate", "--zone", "example.com", path)
	if !strings.Contains(out, "$ORIGIN example.com.") || !strings.Contains(out, "www.example.com. 300 IN A 192.0.2.1") {
		t.Fatal("unexpected zone file", out)
	}
}

func TestImportExportCommands(t *testing.T) {
	dataDir := t.TempDir()
	path := writeFile(t, "example.com.zone", testZone)

	out := run(t, "import", "--data-dir", dataDir, path)
	if !strings.Contains(out, "example.com: 2 imported, 0 failed, 0 skipped") {
		t.Fatal("unexpected import output", out)
	}

	out = run(t, "export", "--data-dir", dataDir, "example.com")
	if !strings.Contains(out, "www.example.com. 3600 IN A 192.0.2.1") || !strings.Contains(out, "example.com. 3600 IN MX 10 mail.example.com.") {
		t.Fatal("unexpected export", out)
	}

	out = run(t, "export", "--data-dir", dataDir)
	if !strings.HasPrefix(out, "example.com: updated ") {
		t.Fatal("unexpected zone listing", out)
	}
}
