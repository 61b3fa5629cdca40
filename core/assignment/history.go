package assignment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders the changes between consecutive versions of a lineage as unified diffs.
func (svc *Service) Diff(ctx context.Context, lineageID uuid.UUID) (string, error) {
	asgs, err := svc.History(ctx, lineageID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i < len(asgs); i++ {
		prev, next := asgs[i-1], asgs[i]
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(snapshot(prev)),
			B:        difflib.SplitLines(snapshot(next)),
			FromFile: fmt.Sprintf("v%d (#%d)", prev.Version, prev.ID),
			ToFile:   fmt.Sprintf("v%d (#%d)", next.Version, next.ID),
			Context:  1,
		})
		if err != nil {
			return "", errors.Wrap(err, "diffing versions")
		}
		sb.WriteString(diff)
	}
	return sb.String(), nil
}

// snapshot lists the business & derived fields of a record, one per line.
func snapshot(a Assignment) string {
	intStr := func(i *int) string {
		if i == nil {
			return ""
		}
		return strconv.Itoa(*i)
	}

	lines := []struct{ name, value string }{
		{"Position", a.Position},
		{"WeeklyHours", intStr(a.WeeklyHours)},
		{"EducationLevel", a.EducationLevel},
		{"FultonFellow", a.FultonFellow},
		{"Subject", a.Subject},
		{"CatalogNum", intStr(a.CatalogNum)},
		{"ClassSession", a.ClassSession},
		{"ClassNum", a.ClassNum},
		{"Term", a.Term},
		{"Instructor", a.InstructorName()},
		{"Location", a.Location},
		{"Campus", a.Campus},
		{"AcadCareer", a.AcadCareer},
		{"Compensation", a.Compensation.StringFixed(2)},
		{"CostCenterKey", a.CostCenterKey},
		{"EditStatus", string(a.EditStatus)},
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.name)
		sb.WriteString(": ")
		sb.WriteString(l.value)
		sb.WriteByte('\n')
	}
	return sb.String()
}
