package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/i474232898/weather-report/internal/note"
	"github.com/i474232898/weather-report/internal/weather"
)

const lookupPage = `<html><body>
<div class="conMidtab"><div class="conMidtab2"><table>
<tr><td>省份</td><td>城市</td><td colspan="3">白天</td><td colspan="3">夜间</td></tr>
<tr><td>天气</td><td>风向风力</td><td>最高气温</td><td>天气</td><td>风向风力</td><td>最低气温</td></tr>
<tr><td>湖南</td><td><a href="#">长沙</a></td><td>晴</td><td><span>东风</span><span>3级</span></td><td>28</td><td>多云</td><td><span>南风</span><span>2级</span></td><td>22</td><td>详情</td></tr>
</table></div></div>
</body></html>`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		dryRun = false
		cityFlags = nil
	})
	err := Execute()
	return out.String(), err
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func stubRegions(t *testing.T) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(lookupPage))
	}))
	t.Cleanup(ts.Close)

	prev := regions
	regions = func() []weather.Region { return weather.RegionsAt(ts.URL + "/") }
	t.Cleanup(func() { regions = prev })
	t.Setenv("MAX_RETRIES", "1")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "weather-report "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestLookupPrintsRecord(t *testing.T) {
	stubRegions(t)

	out, err := runCLI(t, "lookup", "--env-file", missingEnvFile(t), "长沙")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	for _, want := range []string{"长沙", "晴", "22~28°", "东风3级"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLookupReportsUnknownCity(t *testing.T) {
	stubRegions(t)

	out, err := runCLI(t, "lookup", "--env-file", missingEnvFile(t), "长沙", "吉安")
	if err == nil {
		t.Fatal("expected error for unknown city")
	}
	if !strings.Contains(out, "吉安: not found") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "22~28°") {
		t.Errorf("known city should still print, output = %q", out)
	}
}

func TestReportRequiresCredentials(t *testing.T) {
	for _, key := range []string{"APP_ID", "APP_SECRET", "OPEN_ID", "TEMPLATE_ID", "CITY", "CITIES"} {
		t.Setenv(key, "")
	}

	_, err := runCLI(t, "--env-file", missingEnvFile(t), "--city", "长沙")
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %v", err)
	}
}

func TestDryRunNeedsNoCredentials(t *testing.T) {
	stubRegions(t)
	prev := noteSources
	noteSources = func(note.TextFetcher, string) []note.Source { return nil }
	t.Cleanup(func() { noteSources = prev })
	for _, key := range []string{"APP_ID", "APP_SECRET", "OPEN_ID", "TEMPLATE_ID", "CITY", "CITIES"} {
		t.Setenv(key, "")
	}

	if _, err := runCLI(t, "--env-file", missingEnvFile(t), "--dry-run", "--city", "长沙"); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
}
