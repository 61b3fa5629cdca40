package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
	testutil "github.com/trezcool/stipend/tests"
)

const fiveFieldHeader = "Position,FultonFellow,WeeklyHours,Student_ID (ID number OR ASUrite accepted),ClassNum\n"

type testCLI struct {
	*commandLine
	env *testutil.Env
	out *bytes.Buffer
}

func setup(t *testing.T) testCLI {
	t.Helper()

	env := testutil.NewEnv(t)
	pipeline, err := ingest.NewPipeline(env.Service, env.Resolver, env.Engine, testutil.ActiveTerm, env.Logger)
	if err != nil {
		t.Fatalf("ingest.NewPipeline(): %v", err)
	}

	out := new(bytes.Buffer)
	cli := &commandLine{
		asgSvc:   env.Service,
		pipeline: pipeline,
		engine:   env.Engine,
		out:      out,
	}
	return testCLI{commandLine: cli, env: env, out: out}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkRunErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() expected an error")
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func activeAssignments(t *testing.T, cli testCLI) []assignment.Assignment {
	t.Helper()
	asgs, err := cli.env.Service.Query(context.Background(), &assignment.QueryFilter{}, nil)
	require.NoError(t, err)
	return asgs
}

func Test_commandLine_help(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "rules without subcommand", args: []string{"rules"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(args))
		})
	}
	assert.Contains(t, cli.out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "rate_rules", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_upload(t *testing.T) {
	good := fiveFieldHeader + "TA,No,10,jdoe1,70001\nIA,No,5,67890,70002\n"

	type extra struct {
		filename  string
		content   string
		wantCount int
		wantOut   string
	}
	tests := []cliTest{
		{name: "no file", args: []string{"upload"}, wantErrStr: "accepts 1 arg(s), received 0"},
		{
			name: "dry run", args: []string{"upload", "--dry-run"},
			extra: extra{filename: "assignments.csv", content: good, wantOut: "2 records valid (five_field).\n"},
		},
		{
			name: "upload", args: []string{"upload"},
			extra: extra{filename: "assignments.csv", content: good, wantCount: 2, wantOut: "2 records uploaded successfully.\n"},
		},
		{
			name: "unknown student", args: []string{"upload"},
			wantErrStr: "Student 'nobody' not found (row 4)",
			extra:      extra{filename: "assignments.csv", content: good + "TA,No,10,nobody,70001\n"},
		},
		{
			name: "not a spreadsheet", args: []string{"upload"}, wantErrStr: "CSV file required.",
			extra: extra{filename: "assignments.txt", content: "hello"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := setup(t)

			args := append([]string{"admin"}, tt.args...)
			ex, _ := tt.extra.(extra)
			if ex.filename != "" {
				args = append(args, writeFile(t, ex.filename, ex.content))
			}

			checkRunErr(t, tt, cli.run(args))
			assert.Equal(t, ex.wantOut, cli.out.String())
			assert.Len(t, activeAssignments(t, cli), ex.wantCount)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		cli := setup(t)
		err := cli.run([]string{"admin", "upload", filepath.Join(t.TempDir(), "nope.csv")})
		assert.Error(t, err)
	})
}

func Test_commandLine_template(t *testing.T) {
	t.Run("stdout", func(t *testing.T) {
		cli := setup(t)
		require.NoError(t, cli.run([]string{"admin", "template"}))
		assert.Equal(t, fiveFieldHeader, cli.out.String())
	})

	t.Run("file", func(t *testing.T) {
		cli := setup(t)
		path := filepath.Join(t.TempDir(), ingest.TemplateFilename)
		require.NoError(t, cli.run([]string{"admin", "template", path}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, fiveFieldHeader, string(data))
		assert.Empty(t, cli.out.String())
	})
}

func Test_commandLine_export(t *testing.T) {
	cli := setup(t)
	testutil.CreateAssignment(t, cli.env, testutil.StudentJane, testutil.ClassCSE310, "TA", 10)
	testutil.CreateAssignment(t, cli.env, testutil.StudentJane, testutil.ClassEEE202, "Grader", 5)
	testutil.CreateAssignment(t, cli.env, testutil.StudentAmir, testutil.ClassCSE598, "IA", 20)

	tests := []struct {
		name     string
		args     []string
		wantRows int
	}{
		{name: "everything", wantRows: 3},
		{name: "one student", args: []string{"--student-id", "12345", "--ordering=-id"}, wantRows: 2},
		{name: "no match", args: []string{"--position", "nope"}, wantRows: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Assignments.xlsx")
			args := append([]string{"admin", "export", path}, tt.args...)
			require.NoError(t, cli.run(args))

			f, err := excelize.OpenFile(path)
			require.NoError(t, err)
			defer func() { _ = f.Close() }()

			rows, err := f.GetRows(ingest.ExportSheet)
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantRows+1) // + header
		})
	}
}

func Test_commandLine_rulesAudit(t *testing.T) {
	cleanRules := writeFile(t, "rules.yaml", `
rate_rules:
  - position: TA
    weekly_hours: 10
    education_level: MS
    fulton_fellow: "no"
    amount: "6636"
`)
	duplicateRules := writeFile(t, "rules.yaml", `
rate_rules:
  - position: TA
    weekly_hours: 10
    education_level: MS
    fulton_fellow: "no"
    amount: "6636"
  - position: TA
    weekly_hours: 10
    education_level: MS
    fulton_fellow: "no"
    amount: "6636"
`)

	type extra struct {
		wantOut []string
	}
	tests := []cliTest{
		{
			name: "built-in rules", args: []string{"rules", "audit"},
			extra: extra{wantOut: []string{
				"CONFLICT  TA 20h PHD fellow=No: 13272.00 shadowed by 14500.00",
				"CONFLICT  Grader 20h PHD fellow=No: 13272.00 shadowed by 14500.00",
				"2 shadowed, 2 conflicting.",
			}},
		},
		{name: "built-in rules (strict)", args: []string{"rules", "audit", "--strict"}, wantErr: errConflictingRules},
		{
			name: "clean file", args: []string{"rules", "audit", "--strict", cleanRules},
			extra: extra{wantOut: []string{"No shadowed rate rules."}},
		},
		{
			name: "duplicates do not conflict", args: []string{"rules", "audit", "--strict", duplicateRules},
			extra: extra{wantOut: []string{"duplicate TA 10h MS fellow=No", "1 shadowed, 0 conflicting."}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := setup(t)
			checkRunErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))

			ex, _ := tt.extra.(extra)
			for _, want := range ex.wantOut {
				assert.Contains(t, cli.out.String(), want)
			}
		})
	}

	t.Run("unreadable file", func(t *testing.T) {
		cli := setup(t)
		err := cli.run([]string{"admin", "rules", "audit", filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})
}
