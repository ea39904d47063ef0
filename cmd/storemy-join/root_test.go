package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Helpers
// ============================================================================

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	left := filepath.Join(dir, "left.csv")
	right := filepath.Join(dir, "right.csv")
	require.NoError(t, os.WriteFile(left, []byte("id:int,name\n1,a\n2,b\n"), 0o600))
	require.NoError(t, os.WriteFile(right, []byte("id:int,city\n1,x\n1,y\n3,z\n"), 0o600))
	return left, right
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

// ============================================================================
// Join
// ============================================================================

func TestJoinToStdout(t *testing.T) {
	left, right := writeInputs(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "inner merged",
			args: []string{"--left-on", "id", "--merge", "--order", "left_right"},
			want: []string{
				"key,id:int,name:string,city:string",
				"Row0_Row0,1,a,x",
				"Row0_Row1,1,a,y",
			},
		},
		{
			name: "full outer unmerged",
			args: []string{"--left-on", "id", "--mode", "full_outer", "--order", "left_right"},
			want: []string{
				"key,id:int,name:string,id (right):int,city:string",
				"Row0_Row0,1,a,1,x",
				"Row0_Row1,1,a,1,y",
				"Row1_?,2,b,?,?",
				"?_Row2,?,?,3,z",
			},
		},
		{
			name: "left anti forced to disk",
			args: []string{"--left-on", "id", "--mode", "left-anti", "--assume-memory-low", "--partitions", "2"},
			want: []string{
				"key,id:int,name:string,id (right):int,city:string",
				"Row1_?,2,b,?,?",
			},
		},
		{
			name: "sequence keys",
			args: []string{"--left-on", "id", "--merge", "--order", "left_right", "--row-keys", "sequence", "--right-include", "city"},
			want: []string{
				"key,id:int,name:string,city:string",
				"Row0,1,a,x",
				"Row1,1,a,y",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{left, right, "--summary=false"}, tt.args...)
			stdout, _, err := run(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lines(stdout))
		})
	}
}

func TestJoinSplitToFiles(t *testing.T) {
	left, right := writeInputs(t)
	out := filepath.Join(t.TempDir(), "out.csv")

	_, stderr, err := run(t, left, right, "--left-on", "id", "--mode", "full_outer",
		"--split", "--order", "left_right", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "IN_MEMORY")

	matches, err := os.ReadFile(filepath.Join(filepath.Dir(out), "out.matches.csv"))
	require.NoError(t, err)
	assert.Len(t, lines(string(matches)), 3)

	leftOnly, err := os.ReadFile(filepath.Join(filepath.Dir(out), "out.left.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,name:string", "Row1,2,b"}, lines(string(leftOnly)))

	rightOnly, err := os.ReadFile(filepath.Join(filepath.Dir(out), "out.right.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,city:string", "Row2,3,z"}, lines(string(rightOnly)))
}

func TestJoinDiskTables(t *testing.T) {
	left, right := writeInputs(t)
	spillDir := t.TempDir()

	stdout, _, err := run(t, left, right, "--left-on", "id", "--merge", "--order", "left_right",
		"--disk-tables", "--assume-memory-low", "--spill-dir", spillDir, "--summary=false")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"key,id:int,name:string,city:string",
		"Row0_Row0,1,a,x",
		"Row0_Row1,1,a,y",
	}, lines(stdout))

	entries, err := os.ReadDir(spillDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "row files and spill files are removed")
}

func TestJoinSplitOmitsUnretainedTables(t *testing.T) {
	left, right := writeInputs(t)

	stdout, _, err := run(t, left, right, "--left-on", "id", "--mode", "left_outer",
		"--split", "--summary=false")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# matches")
	assert.Contains(t, stdout, "# left")
	assert.NotContains(t, stdout, "# right")
}

func TestJoinTableFormat(t *testing.T) {
	left, right := writeInputs(t)

	stdout, _, err := run(t, left, right, "--left-on", "id", "--format", "table", "--summary=false")
	require.NoError(t, err)
	assert.Contains(t, stdout, "joined")
	assert.Contains(t, stdout, "(2 rows)")
}

func TestJoinConfigFileAndEnv(t *testing.T) {
	left, right := writeInputs(t)
	cfgPath := filepath.Join(t.TempDir(), "join.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("left_on: [id]\nmode: right_anti\nsummary: false\n"), 0o600))

	stdout, _, err := run(t, left, right, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,name:string,id (right):int,city:string", "?_Row2,?,?,3,z"}, lines(stdout))

	t.Setenv("SPILLJOIN_MODE", "left_anti")
	stdout, _, err = run(t, left, right, "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Row1_?,2,b,?,?", lines(stdout)[1])
}

func TestJoinSplitSingleTableToFile(t *testing.T) {
	left, right := writeInputs(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")

	_, _, err := run(t, left, right, "--left-on", "id", "--mode", "left_anti",
		"--split", "--summary=false", "-o", out)
	require.NoError(t, err)

	leftOnly, err := os.ReadFile(filepath.Join(dir, "out.left.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,name:string", "Row1,2,b"}, lines(string(leftOnly)))
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "split output never uses the bare name")
}

func TestJoinComparisonModes(t *testing.T) {
	left, _ := writeInputs(t)
	right := filepath.Join(t.TempDir(), "right.csv")
	require.NoError(t, os.WriteFile(right, []byte("id:float,city\n1.0,x\n2.5,y\n"), 0o600))

	args := []string{left, right, "--left-on", "id", "--right-include", "city", "--summary=false"}

	_, _, err := run(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible types")

	stdout, _, err := run(t, append(args, "--comparison", "numeric_as_long")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,name:string,city:string", "Row0_Row0,1,a,x"}, lines(stdout))

	stdout, _, err = run(t, append(args, "--comparison", "as_string", "--mode", "right_anti")...)
	require.NoError(t, err)
	assert.Equal(t, []string{"key,id:int,name:string,city:string", "?_Row1,?,?,y"}, lines(stdout), "1.0 prints as 1")
}

func TestJoinErrors(t *testing.T) {
	left, right := writeInputs(t)

	tests := []struct {
		name      string
		args      []string
		errSubstr string
	}{
		{"missing join columns", []string{left, right}, "left_on is required"},
		{"unknown mode", []string{left, right, "--left-on", "id", "--mode", "cross"}, "join mode"},
		{"unknown column", []string{left, right, "--left-on", "nope"}, "nope"},
		{"arity mismatch", []string{left, right, "--left-on", "id,name", "--right-on", "id"}, "right_on"},
		{"type mismatch", []string{left, right, "--left-on", "name", "--right-on", "id"}, "type"},
		{"missing file", []string{left, filepath.Join(t.TempDir(), "absent.csv"), "--left-on", "id"}, "open input"},
		{"probe hash on disk", []string{left, right, "--left-on", "id", "--order", "probe_hash", "--assume-memory-low"}, "UNSUPPORTED_COMBINATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

// ============================================================================
// Subcommands
// ============================================================================

func TestConfigCommand(t *testing.T) {
	stdout, _, err := run(t, "config", "--mode", "left_outer", "--memory-budget", "1MiB")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode: left_outer")
	assert.Contains(t, stdout, "memory_budget: 1MiB")
	assert.NotContains(t, stdout, "config:")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "storemy-join v"+Version+"\n", stdout)
}

func TestTablePath(t *testing.T) {
	assert.Equal(t, "out.matches.csv", tablePath("out.csv", "matches"))
	assert.Equal(t, "dir/out.left", tablePath("dir/out", "left"))
}
