package features

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

// location fields copied into events
var embeddedLocationFields = []string{"name", "address", "city", "country"}

func (a *App) locationEntity() *core.Entity[Location] {
	schema := core.NewSchema[Location]().
		ReadOnly("createdBy", "createdAt").
		Refine(func(l Location) []core.FieldIssue {
			if (l.Lat == nil) != (l.Lng == nil) {
				return []core.FieldIssue{{Path: "lat", Message: "lat and lng must be given together"}}
			}
			return nil
		})

	return core.NewEntity(CollectionLocations, schema).
		RequireAuth().
		WithRoles(auth.RoleAdmin, auth.RoleOrganizer).
		PublicReads().
		WithSort("name", core.SortAsc).
		Searchable("name", "city", "address").
		BeforeCreate(func(ctx context.Context, l Location, who *auth.Identity) (Location, error) {
			l.CreatedBy = who.Subject
			l.CreatedAt = a.clock()
			return l, nil
		}).
		BeforeDelete(func(ctx context.Context, who *auth.Identity, id string) error {
			n, err := a.count(ctx, CollectionEvents, core.Eq("location.id", id))
			if err != nil {
				return err
			}
			if n > 0 {
				return core.Conflict(fmt.Sprintf("location is used by %d events", n))
			}
			return nil
		}).
		AfterUpdate(func(ctx context.Context, p core.Patch[Location], who *auth.Identity, id string) error {
			touched := false
			for _, f := range embeddedLocationFields {
				touched = touched || p.Has(f)
			}
			if !touched {
				return nil
			}
			return a.cascadeLocation(ctx, id)
		}).
		Build()
}

// cascadeLocation refreshes the location copy embedded in every event held at id
func (a *App) cascadeLocation(ctx context.Context, id string) error {
	current, err := a.Locations.Fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("loading location %s for cascade: %w", id, err)
	}
	snap, err := core.ToDocument(snapshotOf(current))
	if err != nil {
		return err
	}
	n, err := a.gw.UpdateMany(ctx, CollectionEvents, core.Eq("location.id", id), core.Document{"location": snap})
	if err != nil {
		return fmt.Errorf("cascading location %s into events: %w", id, err)
	}
	a.log.WithFields(logrus.Fields{"location_id": id, "events": n}).Debug("location cascaded")
	return nil
}
