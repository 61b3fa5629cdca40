package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		in   string
		want []DBOrdering
	}{
		{in: ""},
		{in: "id", want: []DBOrdering{{Field: "id", Ascending: true}}},
		{in: "-id", want: []DBOrdering{{Field: "id"}}},
		{
			in:   " -term , student_id,,-",
			want: []DBOrdering{{Field: "term"}, {Field: "student_id", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.in))
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	assert.Equal(t, "id ASC", DBOrdering{Field: "id", Ascending: true}.String())
	assert.Equal(t, "id DESC", DBOrdering{Field: "id"}.String())
}
