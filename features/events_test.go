package features_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danceflow/danceflow/middleware/auth"
)

const hallBody = `{"name":"Dance Hall","address":"1 Main St","city":"Lisbon","country":"PT","lat":38.72,"lng":-9.14}`

func eventBody(title, locationID, startsAt string) string {
	return `{"title":"` + title + `","startsAt":"` + startsAt + `","locationId":"` + locationID + `","tags":["salsa"]}`
}

func titlesOf(t *testing.T, res *response) []string {
	t.Helper()
	var docs []map[string]any
	res.decode(t, &docs)
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["title"].(string)
	}
	return out
}

func TestLocationRenameCascadesToEvents(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)

	loc := h.create("/locations", org.Token, hallBody)
	other := h.create("/locations", org.Token, `{"name":"Beach Bar","address":"Praia","city":"Cascais"}`)
	e1 := h.create("/events", org.Token, eventBody("Salsa Social", loc, "2026-05-01T20:00:00Z"))
	e2 := h.create("/events", org.Token, eventBody("Bachata Night", loc, "2026-05-02T20:00:00Z"))
	e3 := h.create("/events", org.Token, eventBody("Beach Kizomba", other, "2026-05-03T20:00:00Z"))

	res := h.do(http.MethodGet, "/events/"+e1, "", "")
	require.Equal(t, http.StatusOK, res.Status)
	embedded := res.doc(t)["location"].(map[string]any)
	assert.Equal(t, "Dance Hall", embedded["name"])
	assert.Equal(t, loc, embedded["id"])

	res = h.do(http.MethodPatch, "/locations/"+loc, org.Token, `{"name":"Grand Dance Hall","city":"Porto"}`)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.JSONEq(t, `{"id":"`+loc+`","updated":["city","name"]}`, string(res.Data))
	h.hooks.Wait()

	for _, id := range []string{e1, e2} {
		res = h.do(http.MethodGet, "/events/"+id, "", "")
		embedded = res.doc(t)["location"].(map[string]any)
		assert.Equal(t, "Grand Dance Hall", embedded["name"])
		assert.Equal(t, "Porto", embedded["city"])
		assert.Equal(t, "1 Main St", embedded["address"])
	}
	res = h.do(http.MethodGet, "/events/"+e3, "", "")
	assert.Equal(t, "Beach Bar", res.doc(t)["location"].(map[string]any)["name"])
}

func TestLocationDeleteRefusedWhileInUse(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)

	loc := h.create("/locations", org.Token, hallBody)
	ev := h.create("/events", org.Token, eventBody("Salsa Social", loc, "2026-05-01T20:00:00Z"))

	res := h.do(http.MethodDelete, "/locations/"+loc, org.Token, "")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "location is used by 1 events", res.Error)

	res = h.do(http.MethodDelete, "/events/"+ev, org.Token, "")
	require.Equal(t, http.StatusOK, res.Status)

	res = h.do(http.MethodDelete, "/locations/"+loc, org.Token, "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"id":"`+loc+`","deleted":true}`, string(res.Data))

	res = h.do(http.MethodDelete, "/locations/"+loc, org.Token, "")
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestLocationValidation(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)
	member := h.signUp("Max Member", auth.RoleMember)

	res := h.do(http.MethodPost, "/locations", member.Token, hallBody)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = h.do(http.MethodPost, "/locations", org.Token, `{"name":"Hall","address":"x","city":"y","lat":120}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "must be a valid latitude", res.issue("lat"))

	res = h.do(http.MethodPost, "/locations", org.Token, `{"name":"Hall","address":"x","city":"y","lat":10}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "lat and lng must be given together", res.issue("lat"))

	loc := h.create("/locations", org.Token, hallBody)
	res = h.do(http.MethodPatch, "/locations/"+loc, org.Token, `{"createdBy":"someone-else"}`)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "is read-only", res.issue("createdBy"))
}

func TestEventOwnership(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp("Olga Organizer", auth.RoleOrganizer)
	rival := h.signUp("Rita Rival", auth.RoleOrganizer)
	admin := h.signUp("Ada Admin", auth.RoleAdmin)

	loc := h.create("/locations", owner.Token, hallBody)
	ev := h.create("/events", owner.Token, eventBody("Salsa Social", loc, "2026-05-01T20:00:00Z"))

	res := h.do(http.MethodGet, "/events/"+ev, "", "")
	assert.Equal(t, owner.ID, res.doc(t)["organizerId"])

	res = h.do(http.MethodPatch, "/events/"+ev, rival.Token, `{"title":"Stolen Social"}`)
	assert.Equal(t, http.StatusForbidden, res.Status)
	res = h.do(http.MethodDelete, "/events/"+ev, rival.Token, "")
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = h.do(http.MethodGet, "/events/"+ev, "", "")
	assert.Equal(t, "Salsa Social", res.doc(t)["title"], "a vetoed update leaves the record unchanged")

	res = h.do(http.MethodPatch, "/events/"+ev, admin.Token, `{"title":"Salsa Social XL"}`)
	require.Equal(t, http.StatusOK, res.Status)

	res = h.do(http.MethodPatch, "/events/missing", owner.Token, `{"title":"Nothing"}`)
	assert.Equal(t, http.StatusNotFound, res.Status)

	res = h.do(http.MethodDelete, "/events/"+ev, owner.Token, "")
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestEventValidation(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)
	loc := h.create("/locations", org.Token, hallBody)

	res := h.do(http.MethodPost, "/events", org.Token, eventBody("Salsa Social", "nowhere", "2026-05-01T20:00:00Z"))
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "unknown location", res.issue("locationId"))

	res = h.do(http.MethodPost, "/events", org.Token, `{"title":"Salsa Social","locationId":"`+loc+`","startsAt":"2026-05-01T20:00:00Z","endsAt":"2026-05-01T19:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "must be after startsAt", res.issue("endsAt"))

	res = h.do(http.MethodPost, "/events", org.Token, `{"locationId":"`+loc+`"}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "is required", res.issue("title"))
	assert.Equal(t, "is required", res.issue("startsAt"))

	ev := h.create("/events", org.Token, `{"title":"Salsa Social","locationId":"`+loc+`","startsAt":"2026-05-01T20:00:00.123+02:00"}`)
	res = h.do(http.MethodGet, "/events/"+ev, "", "")
	assert.Equal(t, "2026-05-01T18:00:00Z", res.doc(t)["startsAt"], "times are stored in UTC at second resolution")

	res = h.do(http.MethodPatch, "/events/"+ev, org.Token, `{"endsAt":"2026-05-01T17:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "must be after startsAt", res.issue("endsAt"))

	res = h.do(http.MethodPatch, "/events/"+ev, org.Token, `{"organizerId":"someone"}`)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestEventMoveReembedsLocation(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)
	hall := h.create("/locations", org.Token, hallBody)
	bar := h.create("/locations", org.Token, `{"name":"Beach Bar","address":"Praia","city":"Cascais"}`)
	ev := h.create("/events", org.Token, eventBody("Salsa Social", hall, "2026-05-01T20:00:00Z"))

	res := h.do(http.MethodPatch, "/events/"+ev, org.Token, `{"locationId":"`+bar+`"}`)
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.JSONEq(t, `{"id":"`+ev+`","updated":["location","locationId"]}`, string(res.Data))

	res = h.do(http.MethodGet, "/events/"+ev, "", "")
	assert.Equal(t, "Beach Bar", res.doc(t)["location"].(map[string]any)["name"])

	res = h.do(http.MethodPatch, "/events/"+ev, org.Token, `{"locationId":"gone"}`)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestEventListFilters(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)
	loc := h.create("/locations", org.Token, hallBody)

	h.create("/events", org.Token, `{"title":"Past Tango","locationId":"`+loc+`","startsAt":"2026-01-10T20:00:00Z","tags":["tango"]}`)
	h.create("/events", org.Token, `{"title":"Salsa Social","locationId":"`+loc+`","startsAt":"2026-05-01T20:00:00Z","tags":["salsa","social"]}`)
	h.create("/events", org.Token, `{"title":"Bachata Social","locationId":"`+loc+`","startsAt":"2026-04-01T20:00:00Z","tags":["bachata","social"],"price":10}`)

	tests := []struct {
		name  string
		query url.Values
		want  []string
	}{
		{"sorted by start", nil, []string{"Past Tango", "Bachata Social", "Salsa Social"}},
		{"upcoming", url.Values{"upcoming": {"true"}}, []string{"Bachata Social", "Salsa Social"}},
		{"past", url.Values{"upcoming": {"false"}}, []string{"Past Tango"}},
		{"tag", url.Values{"tag": {"social"}}, []string{"Bachata Social", "Salsa Social"}},
		{"tag and upcoming", url.Values{"tag": {"salsa"}, "upcoming": {"true"}}, []string{"Salsa Social"}},
		{"price", url.Values{"price": {"10"}}, []string{"Bachata Social"}},
		{"search", url.Values{"q": {"tango"}}, []string{"Past Tango"}},
		{"embedded field", url.Values{"location.city": {"Lisbon"}}, []string{"Past Tango", "Bachata Social", "Salsa Social"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.do(http.MethodGet, "/events?"+tt.query.Encode(), "", "")
			require.Equal(t, http.StatusOK, res.Status, res.Error)
			assert.Equal(t, tt.want, titlesOf(t, res))
		})
	}

	res := h.do(http.MethodGet, "/events?upcoming=soon", "", "")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "must be true or false", res.issue("upcoming"))
}

func TestEventListPagination(t *testing.T) {
	h := newHarness(t)
	org := h.signUp("Olga Organizer", auth.RoleOrganizer)
	loc := h.create("/locations", org.Token, hallBody)
	for _, day := range []string{"01", "02", "03", "04", "05"} {
		h.create("/events", org.Token, eventBody("Social "+day, loc, "2026-06-"+day+"T20:00:00Z"))
	}

	res := h.do(http.MethodGet, "/events?limit=2&page=2&tag=salsa", "", "")
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, []string{"Social 03", "Social 04"}, titlesOf(t, res))
	assert.Equal(t, "5", res.Header.Get("X-Total-Count"))
	link := res.Header.Get("Link")
	assert.Contains(t, link, `rel="next"`)
	assert.Contains(t, link, `rel="prev"`)
	assert.Contains(t, link, "tag=salsa")

	res = h.do(http.MethodGet, "/events?limit=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "must be a positive integer", res.issue("limit"))
}
