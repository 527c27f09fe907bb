package features

import (
	"context"
	"strings"

	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

func (a *App) tagEntity() *core.Entity[Tag] {
	return core.NewEntity(CollectionTags, core.NewSchema[Tag]()).
		RequireAuth().
		WithRoles(auth.RoleAdmin).
		PublicReads().
		WithSort("name", core.SortAsc).
		BeforeCreate(func(ctx context.Context, t Tag, who *auth.Identity) (Tag, error) {
			t.Name = normalizeTag(t.Name)
			return t, a.checkTagName(ctx, t.Name, "")
		}).
		BeforeUpdate(func(ctx context.Context, p core.Patch[Tag], who *auth.Identity, id string) (core.Patch[Tag], error) {
			if !p.Has("name") {
				return p, nil
			}
			p.Value.Name = normalizeTag(p.Value.Name)
			return p, a.checkTagName(ctx, p.Value.Name, id)
		}).
		Build()
}

func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// checkTagName rejects a name already used by a tag other than self
func (a *App) checkTagName(ctx context.Context, name, self string) error {
	if name == "" {
		return core.Validation("", core.FieldIssue{Path: "name", Message: "is required"})
	}
	f := core.Eq("name", name)
	if self != "" {
		f = core.And(f, core.Ne("id", self))
	}
	taken, err := a.exists(ctx, CollectionTags, f)
	if err != nil {
		return err
	}
	if taken {
		return core.Conflict("tag " + name + " already exists")
	}
	return nil
}
