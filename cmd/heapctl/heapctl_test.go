package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/segheap/internal/format"
)

// runCLI executes heapctl with args against fresh flag state and returns
// everything written to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags() {
	verbose, quiet, jsonOut, noColor = false, false, false, true
	configPath = ""
	maxHeap = sizeFlag(format.DefaultMaxHeap)
	stressOps, stressSeed, stressMaxSize, stressCheckEvery = 10000, 1, 4096, 100
	stressFile, stressDrain, stressMetrics = "", false, false
	dumpClass = -1
}

// assertJSON checks that output is valid JSON and decodes it.
func assertJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output: %s", output)
	return result
}

func TestClassesCommand(t *testing.T) {
	out, err := runCLI(t, "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "16385")
	assert.Equal(t, 15, strings.Count(out, "\n"))

	out, err = runCLI(t, "classes", "--json")
	require.NoError(t, err)
	var classes []classInfo
	require.NoError(t, json.Unmarshal([]byte(out), &classes))
	require.Len(t, classes, 14)
	assert.Equal(t, uint32(257), classes[7].Min)
}

func TestStressCommand_Memory(t *testing.T) {
	out, err := runCLI(t, "stress", "-n", "2000", "--seed", "3", "--check-every", "25", "--json")
	require.NoError(t, err)

	res := assertJSON(t, out)
	assert.EqualValues(t, 2000, res["ops"])
	assert.EqualValues(t, 3, res["seed"])
	assert.EqualValues(t, 81, res["checks"])

	out, err = runCLI(t, "stress", "-n", "500", "--drain")
	require.NoError(t, err)
	assert.Contains(t, out, "0 live blocks")
	assert.Contains(t, out, "utilization")
}

func TestStressCommand_Deterministic(t *testing.T) {
	run := func() map[string]any {
		out, err := runCLI(t, "stress", "-n", "1500", "--seed", "99", "--json")
		require.NoError(t, err)
		res := assertJSON(t, out)
		return res["stats"].(map[string]any)
	}
	assert.Equal(t, run(), run())
}

func TestStressCommand_Metrics(t *testing.T) {
	out, err := runCLI(t, "stress", "-n", "300", "-q", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE segheap_calls_total counter")
	assert.Contains(t, out, `segheap_class_free_blocks{class="13"}`)
	assert.NotContains(t, out, "utilization")
}

func TestStressCommand_Config(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "heap.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("chunk_size: 1024\nstrict: true\nmax_heap: 64KB\n"), 0o644))

	out, err := runCLI(t, "stress", "-n", "1000", "--config", cfg, "--json")
	require.NoError(t, err)
	res := assertJSON(t, out)
	st := res["stats"].(map[string]any)
	assert.LessOrEqual(t, st["HeapBytes"].(float64), float64(64<<10))
	assert.Greater(t, res["alloc_failures"].(float64), float64(0))

	require.NoError(t, os.WriteFile(cfg, []byte("max_heap: lots\n"), 0o644))
	_, err = runCLI(t, "stress", "-n", "10", "--config", cfg)
	require.Error(t, err)
}

func TestFileWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.heap")

	_, err := runCLI(t, "stress", "--file", path, "-n", "3000", "--check-every", "10", "-q")
	require.NoError(t, err)

	out, err := runCLI(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "allocated:")

	out, err = runCLI(t, "dump", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OFFSET")
	assert.Contains(t, out, "allocated")

	out, err = runCLI(t, "dump", path, "--json")
	require.NoError(t, err)
	res := assertJSON(t, out)
	blocks := res["blocks"].([]any)
	require.NotEmpty(t, blocks)
	first := blocks[0].(map[string]any)
	assert.EqualValues(t, format.FirstBlockOff, first["Off"])

	out, err = runCLI(t, "dump", path, "--class", "13")
	require.NoError(t, err)
	assert.Contains(t, out, "class 13")
}

func TestCheckCommand_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.heap")
	_, err := runCLI(t, "stress", "--file", path, "-n", "200", "-q")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(raw[len(raw)-4:], 0)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	out, err := runCLI(t, "check", path, "--json")
	require.Error(t, err)
	res := assertJSON(t, out)
	assert.Equal(t, false, res["valid"])
	assert.Contains(t, res["error"], "epilogue")

	_, err = runCLI(t, "dump", path)
	require.Error(t, err)

	_, err = runCLI(t, "check", filepath.Join(t.TempDir(), "missing.heap"))
	require.Error(t, err)
}

func TestSizeFlag(t *testing.T) {
	var s sizeFlag
	require.NoError(t, s.Set("2MB"))
	assert.Equal(t, sizeFlag(2<<20), s)
	assert.Equal(t, "size", s.Type())
	require.Error(t, s.Set("two"))
}
