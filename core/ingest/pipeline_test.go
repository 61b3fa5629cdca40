package ingest_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
	"github.com/trezcool/stipend/core/valuation"
	dummydb "github.com/trezcool/stipend/storage/database/dummy"
	testutil "github.com/trezcool/stipend/tests"
)

const fiveFieldHeader = "Position,FultonFellow,WeeklyHours,Student_ID (ID number OR ASUrite accepted),ClassNum\n"

type uploadRecorder struct {
	formats   []string
	committed []int
	failures  int
}

func (r *uploadRecorder) RecordUpload(format string, committed int, err error) {
	r.formats = append(r.formats, format)
	r.committed = append(r.committed, committed)
	if err != nil {
		r.failures++
	}
}

type fallbackRecorder struct {
	calls map[string]int
}

func (r *fallbackRecorder) RecordFallback(kind, position string) {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[kind+":"+position]++
}

func newPipeline(t *testing.T, env *testutil.Env, opts ...ingest.Option) *ingest.Pipeline {
	t.Helper()
	p, err := ingest.NewPipeline(env.Service, env.Resolver, env.Engine, testutil.ActiveTerm, env.Logger, opts...)
	require.NoError(t, err)
	return p
}

func csvSource(s string) ingest.RowSource {
	return ingest.NewCSVSource(strings.NewReader(s))
}

func rowError(t *testing.T, err error) *core.RowError {
	t.Helper()
	var rerr *core.RowError
	require.True(t, errors.As(err, &rerr), "want RowError, got %v", err)
	return rerr
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, ingest.FormatFiveField, ingest.DetectFormat(ingest.TemplateHeader))
	assert.Equal(t, ingest.FormatFiveField, ingest.DetectFormat([]string{"x", " Student_ID (ID number OR ASUrite accepted) "}))
	assert.Equal(t, ingest.FormatLegacy, ingest.DetectFormat(ingest.LegacyHeader))
	assert.Equal(t, ingest.FormatLegacy, ingest.DetectFormat(nil))
}

func TestNewPipeline(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := ingest.NewPipeline(env.Service, env.Resolver, env.Engine, "", env.Logger)
	assert.Error(t, err)
}

func TestPipeline_Upload_FiveField(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	rec := &uploadRecorder{}
	p := newPipeline(t, env, ingest.WithUploadRecorder(rec))

	src := csvSource("\xEF\xBB\xBF" + fiveFieldHeader +
		"TA,,10,jdoe1,70002\n" +
		"\n" +
		"IA,yes,10,67890,70002\n" +
		"Grader,No,20,12345,70001\n")

	res, err := p.Upload(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, ingest.FormatFiveField, res.Format)
	assert.Equal(t, 3, res.Committed)
	require.Len(t, res.Assignments, 3)

	ta := res.Assignments[0]
	assert.Equal(t, testutil.StudentJane.ID, ta.StudentID)
	assert.Equal(t, "Jane", ta.FirstName)
	assert.Equal(t, "MS", ta.EducationLevel)
	assert.Equal(t, "No", ta.FultonFellow)
	assert.Equal(t, testutil.ActiveTerm, ta.Term)
	assert.Equal(t, "C", ta.ClassSession)
	assert.Equal(t, valuation.CareerGrad, ta.AcadCareer)
	assert.True(t, decimal.NewFromInt(6636).Equal(ta.Compensation)) // session ignored by the TA ladder
	assert.Equal(t, "CC0136/PG06875", ta.CostCenterKey)
	assert.Equal(t, testutil.StudentJane.CurrentGPA, ta.CurrentGPA)
	assert.Equal(t, 1, ta.Version)

	ia := res.Assignments[1]
	assert.Equal(t, "Yes", ia.FultonFellow)
	assert.Equal(t, "PHD", ia.EducationLevel)
	assert.True(t, decimal.NewFromInt(4400).Equal(ia.Compensation))
	assert.Equal(t, "CC0136/PG15818", ia.CostCenterKey)

	grader := res.Assignments[2]
	assert.True(t, decimal.NewFromInt(13272).Equal(grader.Compensation))
	assert.Equal(t, "CC0136/PG14700", grader.CostCenterKey)

	assert.Equal(t, []string{"five_field"}, rec.formats)
	assert.Equal(t, []int{3}, rec.committed)
	assert.Zero(t, rec.failures)
}

func TestPipeline_AliasAndIDResolveTheSameStudent(t *testing.T) {
	env := testutil.NewEnv(t)
	p := newPipeline(t, env)

	batch, err := p.Parse(context.Background(), csvSource(fiveFieldHeader+
		"TA,No,10,jdoe1,70001\n"+
		"TA,No,10,12345,70001\n"+
		"TA,No,10,JDOE1,70001\n"))
	require.NoError(t, err)
	require.Len(t, batch.Assignments, 3)
	assert.Equal(t, batch.Assignments[0], batch.Assignments[1])
	assert.Equal(t, batch.Assignments[0], batch.Assignments[2])
}

func TestPipeline_Upload_AbortsOnBadRow(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	rec := &uploadRecorder{}
	p := newPipeline(t, env, ingest.WithUploadRecorder(rec))

	_, err := p.Upload(ctx, csvSource(fiveFieldHeader+
		"TA,No,10,jdoe1,70001\n"+
		"TA,No,10,jdoe1,99999\n"+
		"TA,No,10,jdoe1,70002\n"))
	rerr := rowError(t, err)
	assert.Equal(t, 3, rerr.Row)
	assert.Equal(t, "ClassNum '99999' not found (row 3)", rerr.Error())

	asgs, err := env.Service.Query(ctx, &assignment.QueryFilter{IncludeHistory: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, asgs)
	assert.Equal(t, 1, rec.failures)
}

func TestPipeline_Upload_CountsFallbacksOnce(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	rec := &fallbackRecorder{}
	engine := valuation.NewEngine(valuation.DefaultRules(), valuation.WithFallbackRecorder(rec))
	svc, err := assignment.NewService(dummydb.NewAssignmentRepository(env.DB), env.Resolver, engine, env.Logger)
	require.NoError(t, err)
	p, err := ingest.NewPipeline(svc, env.Resolver, engine, testutil.ActiveTerm, env.Logger)
	require.NoError(t, err)

	rows := fiveFieldHeader +
		"Mystery,No,10,jdoe1,70002\n" +
		"TA,No,10,jdoe1,70002\n"

	// drafts are never counted
	_, err = p.Parse(ctx, csvSource(rows))
	require.NoError(t, err)
	_, err = p.Preview(ctx, csvSource(rows))
	require.NoError(t, err)
	assert.Empty(t, rec.calls)

	res, err := p.Upload(ctx, csvSource(rows))
	require.NoError(t, err)
	require.Equal(t, 2, res.Committed)
	assert.True(t, res.Assignments[0].Compensation.IsZero())
	assert.Equal(t, valuation.UnknownCostCenter, res.Assignments[0].CostCenterKey)
	assert.True(t, decimal.NewFromInt(6636).Equal(res.Assignments[1].Compensation))

	assert.Equal(t, map[string]int{
		valuation.FallbackRate + ":Mystery":       1,
		valuation.FallbackCostCenter + ":Mystery": 1,
	}, rec.calls)
}

func TestPipeline_Parse_RowErrors(t *testing.T) {
	tests := []struct {
		name    string
		rows    string
		wantRow int
		wantMsg string
	}{
		{name: "missing position", rows: ",No,10,jdoe1,70001\n", wantRow: 2, wantMsg: "Missing 'Position' in row 2"},
		{name: "missing hours", rows: "TA,No,,jdoe1,70001\n", wantRow: 2, wantMsg: "Missing 'WeeklyHours' in row 2"},
		{
			name:    "missing identifier",
			rows:    "TA,No,10,jdoe1,70001\nTA,No,10, ,70001\n",
			wantRow: 3,
			wantMsg: "Missing 'Student_ID (ID number OR ASUrite accepted)' in row 3",
		},
		{name: "missing class", rows: "TA,No,10,jdoe1\n", wantRow: 2, wantMsg: "Missing 'ClassNum' in row 2"},
		{name: "position checked first", rows: ",No,,,\n", wantRow: 2, wantMsg: "Missing 'Position' in row 2"},
		{name: "invalid hours", rows: "TA,No,ten,jdoe1,70001\n", wantRow: 2, wantMsg: "Invalid 'WeeklyHours' in row 2"},
		{name: "unknown student", rows: "TA,No,10,ghost,70001\n", wantRow: 2, wantMsg: "Student 'ghost' not found (row 2)"},
		{name: "unknown class", rows: "TA,No,10,12345,1\n", wantRow: 2, wantMsg: "ClassNum '1' not found (row 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv(t)
			_, err := newPipeline(t, env).Parse(context.Background(), csvSource(fiveFieldHeader+tt.rows))
			rerr := rowError(t, err)
			assert.Equal(t, tt.wantRow, rerr.Row)
			assert.Equal(t, tt.wantMsg, rerr.Error())
		})
	}
}

func TestPipeline_Parse_Empty(t *testing.T) {
	env := testutil.NewEnv(t)
	p := newPipeline(t, env)

	for _, input := range []string{"", "\n\n"} {
		_, err := p.Parse(context.Background(), csvSource(input))
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "File is empty or missing.", verr.Error())
	}

	batch, err := p.Parse(context.Background(), csvSource(fiveFieldHeader))
	require.NoError(t, err)
	assert.Empty(t, batch.Assignments)
}

func TestPipeline_Parse_Legacy(t *testing.T) {
	env := testutil.NewEnv(t)
	p := newPipeline(t, env)
	header := strings.Join(ingest.LegacyHeader, ",") + "\n"

	batch, err := p.Parse(context.Background(), csvSource(header+
		"TA,12345,JDOE1,10,No,jdoe1@asu.edu,MS,CSE,310,A,70001,2231,Ada,Lovelace,TEMPE,TEMPE,GRAD\n"+
		"Grader,67890,asmith2,20,yes,asmith2@asu.edu,PHD,CSE,598,C,70002,,Alan,Turing,TEMPE,TEMPE,\n"+
		"Grader,11111,nobody,20,Yes,,MS,CSE,,C,70002,,,,TEMPE,TEMPE,\n"))
	require.NoError(t, err)
	assert.Equal(t, ingest.FormatLegacy, batch.Format)
	require.Len(t, batch.Assignments, 3)

	first := batch.Assignments[0]
	assert.Equal(t, "jdoe1", first.ASUrite)
	assert.Equal(t, testutil.ActiveTerm, first.Term)
	// derived, the column is ignored
	assert.Equal(t, valuation.CareerUndergrad, first.AcadCareer)
	assert.Nil(t, first.CurrentGPA)
	assert.True(t, decimal.NewFromInt(6636).Equal(first.Compensation))
	assert.Equal(t, "CC0136/PG02202", first.CostCenterKey)

	fellow := batch.Assignments[1]
	assert.Equal(t, testutil.StudentAmir.CurrentGPA, fellow.CurrentGPA)
	assert.Equal(t, testutil.StudentAmir.CumulativeGPA, fellow.CumulativeGPA)
	assert.Equal(t, valuation.CareerGrad, fellow.AcadCareer)
	assert.True(t, decimal.RequireFromString("13461.24").Equal(fellow.Compensation))

	unknown := batch.Assignments[2]
	assert.Nil(t, unknown.CurrentGPA)
	assert.Equal(t, "", unknown.AcadCareer)
	assert.Equal(t, valuation.UnknownCostCenter, unknown.CostCenterKey)

	_, err = p.Parse(context.Background(), csvSource(header+"TA,12345,jdoe1,ten,No,,MS,CSE,310,A,70001,,,,TEMPE,TEMPE,\n"))
	assert.Equal(t, "Invalid 'WeeklyHours' in row 2", rowError(t, err).Error())
}

func TestPipeline_Preview(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	p := newPipeline(t, env)

	rows, err := p.Preview(ctx, csvSource(fiveFieldHeader+"TA,,10,jdoe1,70001\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "No", rows[0].FultonFellow)
	assert.Equal(t, "10", rows[0].WeeklyHours)
	assert.Equal(t, testutil.StudentJane.ID, rows[0].StudentID)
	assert.Equal(t, "Data Structures and Algorithms", rows[0].Title)
	assert.Equal(t, "ada@asu.edu", rows[0].InstructorEmail)

	asgs, err := env.Service.Query(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, asgs)

	_, err = p.Preview(ctx, csvSource(strings.Join(ingest.LegacyHeader, ",")+"\n"))
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Preview only supports the new 5-field template format.", verr.Error())

	tests := []struct {
		rows    string
		wantMsg string
	}{
		{rows: "TA,No,,jdoe1,70001\n", wantMsg: "Missing required field in row 2"},
		{rows: "TA,No,10,ghost,70001\n", wantMsg: "Student not found for 'ghost' (row 2)"},
		{rows: "TA,No,10,jdoe1,404\n", wantMsg: "ClassNum not found: '404' (row 2)"},
	}
	for _, tt := range tests {
		_, err = p.Preview(ctx, csvSource(fiveFieldHeader+tt.rows))
		assert.Equal(t, tt.wantMsg, rowError(t, err).Error())
	}
}

func TestSourceFor(t *testing.T) {
	src, err := ingest.SourceFor("Upload.CSV", strings.NewReader(fiveFieldHeader))
	require.NoError(t, err)
	row, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, ingest.TemplateHeader, row)

	_, err = ingest.SourceFor("upload.txt", strings.NewReader(""))
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "CSV file required.", verr.Error())
}

func TestXLSXSource(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := []interface{}{"Position", "FultonFellow", "WeeklyHours", ingest.StudentIdentifierHeader, "ClassNum"}
	row := []interface{}{"Grader", "No", 10, 12345, "70001"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	src, err := ingest.SourceFor("upload.xlsx", &buf)
	require.NoError(t, err)

	env := testutil.NewEnv(t)
	batch, err := newPipeline(t, env).Parse(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ingest.FormatFiveField, batch.Format)
	require.Len(t, batch.Assignments, 1)
	assert.Equal(t, "CC0136/PG14700", batch.Assignments[0].CostCenterKey)
	assert.True(t, decimal.NewFromInt(6636).Equal(batch.Assignments[0].Compensation))
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ingest.WriteTemplate(&buf))
	assert.Equal(t, fiveFieldHeader, buf.String())
}

func TestWriteWorkbook(t *testing.T) {
	env := testutil.NewEnv(t)
	asg := testutil.CreateAssignment(t, env, testutil.StudentJane, testutil.ClassCSE310, "TA", 10)

	var buf bytes.Buffer
	require.NoError(t, ingest.WriteWorkbook(&buf, []assignment.Assignment{asg}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(ingest.ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "CostCenterKey", rows[0][21])
	assert.Equal(t, "jdoe1", rows[1][3])
	assert.Equal(t, "TA", rows[1][8])
	assert.Equal(t, "6636", rows[1][20])
	assert.Equal(t, "CC0136/PG02202", rows[1][21])
}
