package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/trezcool/stipend/apps/api/echo"
	"github.com/trezcool/stipend/core/ingest"
	testutil "github.com/trezcool/stipend/tests"
)

const fiveFieldHeader = "Position,FultonFellow,WeeklyHours,Student_ID (ID number OR ASUrite accepted),ClassNum\n"

func Test_assignmentApi_upload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		wantCode int
		wantData []byte
	}{
		{
			name: "5-field template", filename: "assignments.csv",
			content:  fiveFieldHeader + "TA,No,10,jdoe1,70001\nIA,No,5,67890,70002\n",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, UploadResponse{Message: "2 records uploaded successfully.", Committed: 2, Format: ingest.FormatFiveField}),
		},
		{
			name: "unknown student aborts the upload", filename: "assignments.csv",
			content:  fiveFieldHeader + "TA,No,10,jdoe1,70001\nTA,No,10,nobody,70001\n",
			wantCode: http.StatusUnprocessableEntity,
			wantData: []byte(`{"error": "Student 'nobody' not found (row 3)", "row": 3}`),
		},
		{
			name: "missing file", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "File is empty or missing."}),
		},
		{
			name: "empty file", filename: "assignments.csv", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "File is empty or missing."}),
		},
		{
			name: "not a spreadsheet", filename: "assignments.txt", content: "hello", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "CSV file required."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setup(t)
			req, rec := newUploadRequest(t, "/v1/assignments/upload", tt.filename, []byte(tt.content))
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)

			if tt.wantCode != http.StatusOK {
				tt := httpTest{method: http.MethodGet, path: "/v1/assignments", wantCode: http.StatusOK, wantData: marchallList(t)}
				checkCodeAndData(t, tt, serve(app, tt))
			}
		})
	}
}

func Test_assignmentApi_calibratePreview(t *testing.T) {
	app := setup(t)

	t.Run("resolves rows", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/assignments/calibrate-preview", "preview.csv",
			[]byte(fiveFieldHeader+"TA,yes,10,JDOE1,70001\n"))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []ingest.PreviewRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, 2, rows[0].Row)
		assert.Equal(t, "Yes", rows[0].FultonFellow)
		assert.Equal(t, testutil.StudentJane.ID, rows[0].StudentID)
		assert.Equal(t, testutil.ClassCSE310.Title, rows[0].Title)
		assert.Equal(t, "UGRD", rows[0].AcadCareer)
	})

	t.Run("legacy layout refused", func(t *testing.T) {
		legacy := strings.Join(ingest.LegacyHeader, ",") + "\n" +
			"TA,12345,jdoe1,10,No,jdoe1@asu.edu,MS,CSE,310,A,70001,2254,Ada,Lovelace,TEMPE,TEMPE,UGRD\n"
		req, rec := newUploadRequest(t, "/v1/assignments/calibrate-preview", "legacy.csv", []byte(legacy))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Preview only supports the new 5-field template format."}),
		}, rec)
	})

	// nothing persisted
	tt := httpTest{method: http.MethodGet, path: "/v1/assignments", wantCode: http.StatusOK, wantData: marchallList(t)}
	checkCodeAndData(t, tt, serve(app, tt))
}

func Test_assignmentApi_template(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/v1/assignments/template")
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="BulkUploadTemplate.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, fiveFieldHeader, rec.Body.String())
}

func Test_assignmentApi_export(t *testing.T) {
	app := setup(t)
	jane := testutil.CreateAssignment(t, app.env, testutil.StudentJane, testutil.ClassCSE310, "TA", 10)
	testutil.CreateAssignment(t, app.env, testutil.StudentAmir, testutil.ClassCSE598, "IA", 20)

	req, rec := newRequest(http.MethodGet, "/v1/assignments/export?student_id=12345")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Assignments.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ingest.ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Student_ID", rows[0][2])
	assert.Equal(t, "12345", rows[1][2])
	assert.Equal(t, jane.CostCenterKey, rows[1][21])
}
