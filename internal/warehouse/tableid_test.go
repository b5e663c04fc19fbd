package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableID(t *testing.T) {
	tests := []struct {
		in       string
		expected TableID
	}{
		{"proj.carris.encm", TableID{"proj", "carris", "encm"}},
		{"proj:carris.encm", TableID{"proj", "carris", "encm"}},
		{"carris.encm", TableID{"", "carris", "encm"}},
		{"  my-proj.carris.espacos_navegante ", TableID{"my-proj", "carris", "espacos_navegante"}},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			id, err := ParseTableID(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestParseTableID_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"encm",
		"a.b.c.d",
		"proj:encm",
		":carris.encm",
		"proj:a.b.c",
		"carris.",
		".encm",
		"carris.en cm",
		"a:b:c.d",
		"encm.load_jobs",
		"proj.encm.load_jobs",
		"carris.encm_load_jobs",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTableID(in)
			assert.ErrorIs(t, err, ErrInvalidTableID)
		})
	}
}

func TestTableID_Forms(t *testing.T) {
	id := TableID{Dataset: "carris", Table: "encm"}
	assert.Equal(t, "carris.encm", id.String())
	assert.Equal(t, "carris_encm", id.FlatName())

	withProject := id.WithProject("proj")
	assert.Equal(t, "proj.carris.encm", withProject.String())
	assert.Equal(t, "proj", withProject.WithProject("other").Project)
}
