package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/stipend/apps/api/echo"
	"github.com/trezcool/stipend/core/assignment"
	testutil "github.com/trezcool/stipend/tests"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	testutil.CreateAssignment(t, app.env, testutil.StudentJane, testutil.ClassCSE310, "TA", 10)
	testutil.CreateAssignment(t, app.env, testutil.StudentJane, testutil.ClassEEE202, "Grader", 5)
	testutil.CreateAssignment(t, app.env, testutil.StudentAmir, testutil.ClassCSE598, "IA", 20)

	t.Run("summary by alias", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/students/JDOE1/summary")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sum assignment.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, "Jane Doe", sum.StudentName)
		assert.Equal(t, map[string]int{"A": 10, "B": 5, "C": 0}, sum.SessionHours)
		assert.Equal(t, 15, sum.TotalHours)
		assert.Len(t, sum.Assignments, 2)
	})

	tests := []httpTest{
		{
			name: "total hours", path: "/v1/students/12345/total-hours", wantCode: http.StatusOK,
			wantData: marchallObj(t, TotalHoursResponse{StudentID: 12345, TotalHours: 15}),
		},
		{
			name: "total hours of a student without assignments", path: "/v1/students/1/total-hours", wantCode: http.StatusOK,
			wantData: marchallObj(t, TotalHoursResponse{StudentID: 1}),
		},
		{name: "total hours (bad id)", path: "/v1/students/jdoe1/total-hours", wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name: "summary of unknown student", path: "/v1/students/nobody/summary", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, serve(app, tt))
		})
	}
}

func Test_metrics(t *testing.T) {
	app := setup(t)

	tt := httpTest{method: http.MethodGet, path: "/v1/assignments/9999", wantCode: http.StatusNotFound}
	checkCodeAndData(t, tt, serve(app, tt))

	req, rec := newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`stipend_http_requests_total{code="404",method="GET",route="/v1/assignments/:id"} 1`)
}
