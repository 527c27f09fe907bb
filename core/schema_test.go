package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type venue struct {
	Name string `json:"name" validate:"required"`
}

type gig struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title" validate:"required,min=3"`
	Contact  string   `json:"contact,omitempty" validate:"omitempty,email"`
	Capacity int      `json:"capacity" validate:"gte=0"`
	Level    string   `json:"level,omitempty" validate:"omitempty,oneof=beginner advanced"`
	Tags     []string `json:"tags,omitempty"`
	Venue    *venue   `json:"venue,omitempty"`
}

func issuePaths(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, KindValidation, e.Kind)
	out := make(map[string]string, len(e.Details))
	for _, d := range e.Details {
		out[d.Path] = d.Message
	}
	return out
}

func TestValidateFull(t *testing.T) {
	s := NewSchema[gig]()

	v, err := s.ValidateFull([]byte(`{"title":"Milonga","capacity":40,"venue":{"name":"Hall"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Milonga", v.Title)
	assert.Equal(t, "Hall", v.Venue.Name)

	issues := issuePaths(t, func() error {
		_, err := s.ValidateFull([]byte(`{"title":"ab","contact":"nope","capacity":-1,"level":"pro","venue":{}}`))
		return err
	}())
	assert.Equal(t, "must be at least 3 characters", issues["title"])
	assert.Equal(t, "must be a valid email address", issues["contact"])
	assert.Equal(t, "must be greater than or equal to 0", issues["capacity"])
	assert.Equal(t, "must be one of: beginner, advanced", issues["level"])
	assert.Equal(t, "is required", issues["venue.name"])

	issues = issuePaths(t, func() error {
		_, err := s.ValidateFull([]byte(`{"capacity":1}`))
		return err
	}())
	assert.Equal(t, "is required", issues["title"])
}

func TestValidateFullDecodeErrors(t *testing.T) {
	s := NewSchema[gig]()

	tests := []struct {
		name string
		body string
		path string
		msg  string
	}{
		{"wrong type", `{"title":"Milonga","capacity":"many"}`, "capacity", "must be of type number"},
		{"unknown field", `{"title":"Milonga","colour":"red"}`, "colour", "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ValidateFull([]byte(tt.body))
			assert.Equal(t, tt.msg, issuePaths(t, err)[tt.path])
		})
	}

	_, err := s.ValidateFull([]byte(`{"title":`))
	assert.True(t, IsKind(err, KindValidation))
}

func TestValidateFullRefinement(t *testing.T) {
	s := NewSchema[gig]().Refine(func(g gig) []FieldIssue {
		if g.Level == "advanced" && g.Capacity > 20 {
			return []FieldIssue{{Path: "capacity", Message: "advanced classes take at most 20 dancers"}}
		}
		return nil
	})

	_, err := s.ValidateFull([]byte(`{"title":"Masterclass","level":"advanced","capacity":30}`))
	assert.Equal(t, "advanced classes take at most 20 dancers", issuePaths(t, err)["capacity"])

	_, err = s.ValidateFull([]byte(`{"title":"Masterclass","level":"advanced","capacity":12}`))
	assert.NoError(t, err)
}

func TestValidatePartial(t *testing.T) {
	s := NewSchema[gig]()

	p, err := s.ValidatePartial([]byte(`{"capacity":0,"tags":["tango"]}`))
	require.NoError(t, err, "missing required fields are not checked")
	assert.Equal(t, []string{"capacity", "tags"}, p.Fields())
	assert.True(t, p.Has("capacity"))
	assert.False(t, p.Has("title"))

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, Document{"capacity": float64(0), "tags": []any{"tango"}}, doc)

	_, err = s.ValidatePartial([]byte(`{"title":"ab"}`))
	assert.Equal(t, "must be at least 3 characters", issuePaths(t, err)["title"])

	_, err = s.ValidatePartial([]byte(`{"venue":{}}`))
	assert.Equal(t, "is required", issuePaths(t, err)["venue.name"])
}

func TestValidatePartialRejectsKeys(t *testing.T) {
	s := NewSchema[gig]().ReadOnly("contact")

	_, err := s.ValidatePartial([]byte(`{"id":"x","contact":"a@b.co","nope":1}`))
	issues := issuePaths(t, err)
	assert.Equal(t, "is read-only", issues["id"])
	assert.Equal(t, "is read-only", issues["contact"])
	assert.Equal(t, "unknown field", issues["nope"])

	_, err = s.ValidatePartial([]byte(`null`))
	assert.True(t, IsKind(err, KindValidation))

	_, err = s.ValidatePartial([]byte(`[1,2]`))
	assert.True(t, IsKind(err, KindValidation))
}
