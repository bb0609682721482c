package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and the error.
// The working directory and HOME are isolated so no stray config is read.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// testdataRoot is the harness fixture tree, absolute so it survives Chdir.
func testdataRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.Abs(filepath.Join("..", "harness", "testdata"))
	require.NoError(t, err)
	return root
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "planverify", cmd.Use)
	assert.Contains(t, cmd.Long, "PLANVERIFY_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "list", "plan"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("root"))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"filter", "large", "scenarios"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestRun_BuiltinScenariosPass(t *testing.T) {
	root := testdataRoot(t)

	out, err := execute(t, "run", "--root", root)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ toy_regression")
	assert.Contains(t, out, "✓ mnist_linear_classification")
	assert.Contains(t, out, "Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "All scenarios passed")
	assert.NotContains(t, out, "mnist_lenet")
}

func TestRun_LargeBuiltinScenariosPass(t *testing.T) {
	root := testdataRoot(t)

	out, err := execute(t, "run", "--root", root, "--large", "--filter", "mnist_lenet_group_conv_*")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ mnist_lenet_group_conv_classification")
	assert.Contains(t, out, "✓ mnist_lenet_group_conv_nhwc_classification")
	assert.Contains(t, out, "Summary: 2 passed, 0 failed, 2 total")
}

func TestRun_ScenarioFailureExitsOne(t *testing.T) {
	root := testdataRoot(t)
	table := filepath.Join(root, "scenarios", "lenet_regressions.yaml")

	out, err := execute(t, "run", "--root", root, "--scenarios", table)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ lenet_group_conv")
	assert.Contains(t, out, "✗ lenet_undertrained")
	assert.Contains(t, out, "threshold_not_met")
	assert.Contains(t, out, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_JSON(t *testing.T) {
	root := testdataRoot(t)

	out, err := execute(t, "run", "--root", root, "--filter", "toy_*", "--format", "json")
	require.NoError(t, err)

	var response struct {
		Status string `json:"status"`
		Data   struct {
			Results []struct {
				Scenario string `json:"scenario"`
				RunID    string `json:"run_id"`
				Pass     bool   `json:"pass"`
			} `json:"results"`
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))

	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 1, response.Data.Total)
	require.Len(t, response.Data.Results, 1)
	assert.Equal(t, "toy_regression", response.Data.Results[0].Scenario)
	assert.True(t, response.Data.Results[0].Pass)
	assert.NotEmpty(t, response.Data.Results[0].RunID)
}

func TestRun_MissingRootFailsScenarios(t *testing.T) {
	out, err := execute(t, "run", "--root", filepath.Join(t.TempDir(), "absent"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"kind": "load"`)
	assert.Contains(t, out, "E_SCENARIOS_FAILED")
}

func TestRun_NoScenariosSelected(t *testing.T) {
	out, err := execute(t, "run", "--filter", "nothing_matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios selected.")
}

func TestRun_ScenarioTable(t *testing.T) {
	root := testdataRoot(t)
	table := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(table, []byte(`
scenarios:
  - name: gpu_accuracy
    plan: data/mnist/mnist_lenet_gpu.yaml
    assertion: threshold
    threshold: 0.5
    outputs:
      - blob: accuracy
        backend: accelerator
`), 0644))

	out, err := execute(t, "run", "--root", root, "--scenarios", table)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ gpu_accuracy")
}

func TestRun_BadScenarioTableIsCommandError(t *testing.T) {
	_, err := execute(t, "run", "--scenarios", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_ConfigFile(t *testing.T) {
	root := testdataRoot(t)
	cfg := filepath.Join(t.TempDir(), "planverify.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("root: "+root+"\nfilter: toy_*\n"), 0644))

	out, err := execute(t, "run", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
}

func TestRun_InvalidFormat(t *testing.T) {
	_, err := execute(t, "run", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestList_DefaultExcludesLarge(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "toy_regression")
	assert.Contains(t, out, "|W - W_gt| <= 0.005")
	assert.NotContains(t, out, "mnist_lenet")
}

func TestList_JSONWithLarge(t *testing.T) {
	out, err := execute(t, "list", "--large", "--filter", "*_gpu", "--format", "json")
	require.NoError(t, err)

	var response struct {
		Status string `json:"status"`
		Data   []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "mnist_lenet_classification_gpu", response.Data[0].Name)
}

func TestPlan_Valid(t *testing.T) {
	path := filepath.Join(testdataRoot(t), "data", "toy", "toy_regression.yaml")

	out, err := execute(t, "plan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "plan toy_regression: 2 step(s), 204 op(s)")
	assert.Contains(t, out, "train x100: [Sub WeightedSum]")
}

func TestPlan_NotFound(t *testing.T) {
	_, err := execute(t, "plan", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPlan_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nsteps: []\n"), 0644))

	out, err := execute(t, "plan", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodePlanInvalid)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "wrapped", assert.AnError)))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad", NewExitError(ExitCommandError, "bad").Error())
	err := WrapExitError(ExitFailure, "wrapped", assert.AnError)
	assert.Contains(t, err.Error(), "wrapped: ")
	assert.ErrorIs(t, err, assert.AnError)
}

// chdir changes the working directory to dir for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
