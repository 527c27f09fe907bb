package features

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/danceflow/danceflow/api"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

// ReactionTypes are the reactions a post accepts
var ReactionTypes = []string{"like", "love", "clap", "fire"}

func (a *App) postEntity() *core.Entity[Post] {
	schema := core.NewSchema[Post]().ReadOnly("authorId", "reactions", "createdAt")

	return core.NewEntity(CollectionPosts, schema).
		RequireAuth().
		WithSort("createdAt", core.SortDesc).
		Searchable("title", "content").
		BeforeCreate(func(ctx context.Context, p Post, who *auth.Identity) (Post, error) {
			p.AuthorID = who.Subject
			p.Reactions = nil
			p.CreatedAt = a.clock()
			return p, nil
		}).
		BeforeUpdate(func(ctx context.Context, p core.Patch[Post], who *auth.Identity, id string) (core.Patch[Post], error) {
			current, err := a.Posts.Fetch(ctx, id)
			if err != nil {
				return p, err
			}
			return p, requireOwner(who, current.AuthorID, "author")
		}).
		BeforeDelete(func(ctx context.Context, who *auth.Identity, id string) error {
			current, err := a.Posts.Fetch(ctx, id)
			if err != nil {
				return err
			}
			return requireOwner(who, current.AuthorID, "author")
		}).
		WithCustomFilters(func(ctx context.Context, who *auth.Identity, params url.Values) (core.Filter, error) {
			if who.IsAdmin() {
				return core.Filter{}, nil
			}
			visible := core.Eq("published", true)
			if who != nil {
				visible = core.Or(visible, core.Eq("authorId", who.Subject))
			}
			return visible, nil
		}).
		Build()
}

type reactionRequest struct {
	Type string `json:"type" validate:"required,oneof=like love clap fire"`
}

var reactionSchema = core.NewSchema[reactionRequest]()

// ReactionResult reports the caller's reaction state and the post's counts
type ReactionResult struct {
	PostID  string         `json:"postId"`
	Type    string         `json:"type"`
	Reacted bool           `json:"reacted"`
	Counts  map[string]int `json:"counts"`
}

// react handles POST /posts/{id}/reactions, toggling the caller's reaction
func (a *App) react(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := auth.GetIdentity(ctx)
	id := chi.URLParam(r, "id")
	if who == nil {
		api.WriteError(w, r, a.log, core.Unauthorized(""))
		return
	}

	body, err := api.ReadBody(w, r)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	req, err := reactionSchema.ValidateFull(body)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	post, err := a.Posts.Fetch(ctx, id)
	if err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}
	if !post.Published && !who.IsAdmin() && !who.Is(post.AuthorID) {
		api.WriteError(w, r, a.log, core.NotFound("posts "+id+" not found"))
		return
	}

	users := post.Reactions[req.Type]
	reacted := !slices.Contains(users, who.Subject)
	if reacted {
		users = append(users, who.Subject)
	} else {
		users = slices.DeleteFunc(users, func(u string) bool { return u == who.Subject })
	}

	var value any
	if len(users) > 0 {
		list := make([]any, len(users))
		for i, u := range users {
			list[i] = u
		}
		value = list
	}
	patch := core.Document{"reactions": map[string]any{req.Type: value}}
	if err := a.gw.UpdateOne(ctx, CollectionPosts, id, patch); err != nil {
		api.WriteError(w, r, a.log, err)
		return
	}

	if post.Reactions == nil {
		post.Reactions = make(map[string][]string)
	}
	post.Reactions[req.Type] = users
	api.WriteData(w, http.StatusOK, ReactionResult{
		PostID:  id,
		Type:    req.Type,
		Reacted: reacted,
		Counts:  reactionCounts(post.Reactions),
	})
}

func reactionCounts(reactions map[string][]string) map[string]int {
	counts := make(map[string]int, len(ReactionTypes))
	for _, t := range ReactionTypes {
		counts[t] = len(reactions[t])
	}
	return counts
}
