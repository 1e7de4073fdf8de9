package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrixci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
pipeline: sunray
stages:
  - name: Initial tests
  - name: Cron tests
    if: trigger = cron
matrix:
  include:
    - name: py311
      stage: Initial tests
      env:
        TOXENV: py311
    - name: py312-online
      stage: Cron tests
      allow_failure: true
script: tox
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, "sunray", cfg.Pipeline)
	require.Len(t, cfg.Stages, 2)
	require.Len(t, cfg.Matrix.Include, 2)
	// scalar script shorthand
	require.Equal(t, CommandList{"tox"}, cfg.Script)
	// policy defaults
	require.Equal(t, "change", cfg.Notifications.Webhooks.OnSuccess)
	require.Equal(t, "always", cfg.Notifications.Webhooks.OnFailure)
	// daemon defaults
	require.Equal(t, 50, cfg.Daemon.QueueSize)
	require.Equal(t, 8478, cfg.Daemon.HTTP.AdminPort)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "s3cret")
	cfg, err := Load(writeConfig(t, minimalConfig+`
notifications:
  webhooks:
    urls:
      - https://ci.example.com/hook?token=${TEST_WEBHOOK_TOKEN}
`))
	require.NoError(t, err)
	require.Equal(t, []string{"https://ci.example.com/hook?token=s3cret"}, cfg.Notifications.Webhooks.URLs)
}

func TestDefaultStageAssigned(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
matrix:
  include:
    - env:
        TOXENV: py311
script: [tox]
`))
	require.NoError(t, err)
	require.Equal(t, "Tests", cfg.Stages[0].Name)
	require.Equal(t, "Tests", cfg.Matrix.Include[0].Stage)
	require.Equal(t, "entry-1", cfg.Matrix.Include[0].Name)
	require.Equal(t, "default", cfg.Pipeline)
}

func TestValidateUnknownStage(t *testing.T) {
	_, err := Load(writeConfig(t, `
stages:
  - name: Initial tests
matrix:
  include:
    - name: py311
      stage: Nope
script: [tox]
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown stage")
}

func TestValidateMissingScript(t *testing.T) {
	_, err := Load(writeConfig(t, `
matrix:
  include:
    - name: py311
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no script phase")
}

func TestValidateBadPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
notifications:
  webhooks:
    urls: [https://example.com]
    on_success: sometimes
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "on_success")
}

func TestValidateBadCondition(t *testing.T) {
	_, err := Load(writeConfig(t, `
stages:
  - name: Weird
    if: branch = main
matrix:
  include:
    - name: py311
      stage: Weird
script: [tox]
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown subject")
}

func TestValidateBadCron(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
daemon:
  schedules:
    - name: nightly
      cron: "not a cron"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid cron expression")
}

func TestValidateScheduleTriggerDefaultsToCron(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
daemon:
  schedules:
    - name: nightly
      cron: "0 3 * * *"
`))
	require.NoError(t, err)
	require.Equal(t, "cron", cfg.Daemon.Schedules[0].Trigger)
}

func TestToPipelineSelection(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	p, err := cfg.ToPipeline()
	require.NoError(t, err)

	// push excludes the cron-only stage
	push := p.Select(pipeline.TriggerPush)
	require.Equal(t, []string{"Initial tests"}, push.StageNames())

	// cron includes both
	cron := p.Select(pipeline.TriggerCron)
	require.Equal(t, []string{"Initial tests", "Cron tests"}, cron.StageNames())

	// defaults merged into entries
	phases := p.EffectivePhases(p.Entries[0])
	require.Equal(t, []string{"tox"}, phases.Script)
}

func TestCommandListRejectsMapping(t *testing.T) {
	_, err := Load(writeConfig(t, `
matrix:
  include:
    - name: py311
script:
  tox: true
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "command list")
}

func TestInitWritesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrixci.yaml")
	require.NoError(t, Init(path, false))

	// refuses to overwrite without force
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sunray", cfg.Pipeline)
	require.True(t, cfg.Matrix.FastFinish)
	p, err := cfg.ToPipeline()
	require.NoError(t, err)
	require.Len(t, p.Stages, 3)
}
