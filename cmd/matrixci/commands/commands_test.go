package commands

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	content := fmt.Sprintf(`pipeline: clitest
stages:
  - name: Tests
  - name: Cron tests
    if: trigger = cron
matrix:
  include:
    - name: unit
      stage: Tests
    - name: nightly
      stage: Cron tests
script:
  - %q
daemon:
  data_dir: %s
`, script, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: filepath.Join(dir, "matrixci.yaml")}

	if err := (&InitCmd{}).Run(nil, root); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := (&ValidateCmd{}).Run(nil, root); err != nil {
		t.Fatalf("validate generated config: %v", err)
	}

	// Without --force a second init must refuse to overwrite.
	if err := (&InitCmd{}).Run(nil, root); err == nil {
		t.Fatal("expected error for existing config")
	}
	if err := (&InitCmd{Force: true}).Run(nil, root); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	if err := os.WriteFile(path, []byte("pipeline: broken\nmatrix:\n  include: []\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := (&ValidateCmd{}).Run(nil, &CLI{Config: path}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPlanCmd(t *testing.T) {
	root := &CLI{Config: writeConfig(t, "true")}

	if err := (&PlanCmd{Trigger: "push"}).Run(nil, root); err != nil {
		t.Fatalf("plan push: %v", err)
	}
	if err := (&PlanCmd{Trigger: "cron"}).Run(nil, root); err != nil {
		t.Fatalf("plan cron: %v", err)
	}
	if err := (&PlanCmd{Trigger: "bogus"}).Run(nil, root); err == nil {
		t.Fatal("expected error for unknown trigger")
	}
}

func TestRunCmdSuccess(t *testing.T) {
	root := &CLI{Config: writeConfig(t, "true")}

	cmd := &RunCmd{Trigger: "push", NoNotify: true}
	if err := cmd.Run(nil, root); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The run is recorded; history must list it.
	if err := (&HistoryCmd{Limit: 5}).Run(nil, root); err != nil {
		t.Fatalf("history: %v", err)
	}
	// And report renders the most recent run.
	if err := (&ReportCmd{}).Run(nil, root); err != nil {
		t.Fatalf("report: %v", err)
	}
}

func TestRunCmdFailureExitsNonZero(t *testing.T) {
	root := &CLI{Config: writeConfig(t, "false")}

	cmd := &RunCmd{Trigger: "push", NoNotify: true, NoRecord: true}
	if err := cmd.Run(nil, root); err == nil {
		t.Fatal("expected error for failing script")
	}
}

func TestRunCmdNotifiesWithoutHistoryStore(t *testing.T) {
	hits := make(chan struct{}, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	dir := t.TempDir()
	// A file where the data directory should be makes the store unopenable.
	blocked := filepath.Join(dir, "data")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	path := filepath.Join(dir, "matrixci.yaml")
	content := fmt.Sprintf(`pipeline: nohist
stages:
  - name: Tests
matrix:
  include:
    - name: unit
      stage: Tests
script:
  - "false"
notifications:
  webhooks:
    urls: [%s]
    on_failure: always
daemon:
  data_dir: %s
`, hook.URL, blocked)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := &RunCmd{Trigger: "push"}
	if err := cmd.Run(nil, &CLI{Config: path}); err == nil {
		t.Fatal("expected error for failing script")
	}

	select {
	case <-hits:
	default:
		t.Fatal("failure webhook not delivered when history store is unavailable")
	}
}

func TestRunCmdEmptySelection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	content := `pipeline: cronly
stages:
  - name: Cron tests
    if: trigger = cron
matrix:
  include:
    - name: nightly
      stage: Cron tests
script:
  - "true"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := &RunCmd{Trigger: "push", NoNotify: true, NoRecord: true}
	if err := cmd.Run(nil, &CLI{Config: path}); err != nil {
		t.Fatalf("empty selection should succeed, got: %v", err)
	}
}

func TestReportCmdHTMLOutput(t *testing.T) {
	root := &CLI{Config: writeConfig(t, "true")}

	if err := (&RunCmd{Trigger: "push", NoNotify: true}).Run(nil, root); err != nil {
		t.Fatalf("run: %v", err)
	}

	htmlPath := filepath.Join(t.TempDir(), "report.html")
	if err := (&ReportCmd{HTML: htmlPath}).Run(nil, root); err != nil {
		t.Fatalf("report: %v", err)
	}
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty html report")
	}
}
