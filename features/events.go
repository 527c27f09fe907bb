package features

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

func (a *App) eventEntity() *core.Entity[Event] {
	schema := core.NewSchema[Event]().
		ReadOnly("organizerId", "location", "createdAt").
		Refine(func(e Event) []core.FieldIssue {
			return checkEventTimes(e.StartsAt, e.EndsAt)
		})

	return core.NewEntity(CollectionEvents, schema).
		RequireAuth().
		WithRoles(auth.RoleAdmin, auth.RoleOrganizer).
		PublicReads().
		WithSort("startsAt", core.SortAsc).
		Searchable("title", "description").
		BeforeCreate(func(ctx context.Context, e Event, who *auth.Identity) (Event, error) {
			loc, err := a.Locations.Fetch(ctx, e.LocationID)
			if err != nil {
				return e, notFoundAsValidation(err, "locationId", "unknown location")
			}
			e.Location = snapshotOf(loc)
			e.OrganizerID = who.Subject
			e.StartsAt = e.StartsAt.UTC().Truncate(time.Second)
			if e.EndsAt != nil {
				end := e.EndsAt.UTC().Truncate(time.Second)
				e.EndsAt = &end
			}
			e.CreatedAt = a.clock()
			return e, nil
		}).
		BeforeUpdate(func(ctx context.Context, p core.Patch[Event], who *auth.Identity, id string) (core.Patch[Event], error) {
			current, err := a.Events.Fetch(ctx, id)
			if err != nil {
				return p, err
			}
			if err := requireOwner(who, current.OrganizerID, "organizer"); err != nil {
				return p, err
			}

			if p.Has("locationId") {
				loc, err := a.Locations.Fetch(ctx, p.Value.LocationID)
				if err != nil {
					return p, notFoundAsValidation(err, "locationId", "unknown location")
				}
				p.Value.Location = snapshotOf(loc)
				p.Set("location")
			}

			start, end := current.StartsAt, current.EndsAt
			if p.Has("startsAt") {
				p.Value.StartsAt = p.Value.StartsAt.UTC().Truncate(time.Second)
				start = p.Value.StartsAt
			}
			if p.Has("endsAt") {
				if p.Value.EndsAt != nil {
					e := p.Value.EndsAt.UTC().Truncate(time.Second)
					p.Value.EndsAt = &e
				}
				end = p.Value.EndsAt
			}
			if issues := checkEventTimes(start, end); len(issues) > 0 {
				return p, core.Validation("", issues...)
			}
			return p, nil
		}).
		BeforeDelete(func(ctx context.Context, who *auth.Identity, id string) error {
			current, err := a.Events.Fetch(ctx, id)
			if err != nil {
				return err
			}
			return requireOwner(who, current.OrganizerID, "organizer")
		}).
		WithCustomFilters(a.eventFilters).
		Build()
}

// eventFilters understands upcoming=true and tag=<name>
func (a *App) eventFilters(ctx context.Context, who *auth.Identity, params url.Values) (core.Filter, error) {
	var filters []core.Filter
	if raw := params.Get("upcoming"); raw != "" {
		upcoming, err := strconv.ParseBool(raw)
		if err != nil {
			return core.Filter{}, core.Validation("", core.FieldIssue{Path: "upcoming", Message: "must be true or false"})
		}
		if upcoming {
			filters = append(filters, core.Gte("startsAt", a.clock()))
		} else {
			filters = append(filters, core.Lte("startsAt", a.clock()))
		}
	}
	for _, tag := range params["tag"] {
		if tag = strings.TrimSpace(tag); tag != "" {
			filters = append(filters, core.Contains("tags", tag))
		}
	}
	return core.And(filters...), nil
}

func checkEventTimes(start time.Time, end *time.Time) []core.FieldIssue {
	if end != nil && !start.IsZero() && !end.After(start) {
		return []core.FieldIssue{{Path: "endsAt", Message: "must be after startsAt"}}
	}
	return nil
}
