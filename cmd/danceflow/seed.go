package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danceflow/danceflow/config"
	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/features"
	"github.com/danceflow/danceflow/logging"
	"github.com/danceflow/danceflow/middleware/auth"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture records into the store",
	Long: `Load users, tags, locations, events and posts from a YAML fixture.

Records go through the same validation and hooks as API requests. A record
may name itself with "ref" and act as a seeded user with "as"; string values
of the form "@ref" are replaced by the id of the referenced record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		fixture, err := parseFixture(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", seedFile, err)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		log, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("configuring logging: %w", err)
		}
		rt, err := newStack(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		refs, err := seed(cmd.Context(), rt.app, fixture, log)
		rt.hooks.Wait()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records\n", len(refs))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "path to the YAML fixture (required)")
	_ = seedCmd.MarkFlagRequired("file")
}

// Fixture is the seed file layout
type Fixture struct {
	Users     []FixtureRecord `yaml:"users"`
	Tags      []FixtureRecord `yaml:"tags"`
	Locations []FixtureRecord `yaml:"locations"`
	Events    []FixtureRecord `yaml:"events"`
	Posts     []FixtureRecord `yaml:"posts"`
}

// FixtureRecord is one record body plus its seeding directives
type FixtureRecord struct {
	Ref    string         `yaml:"ref"`
	As     string         `yaml:"as"`
	Fields map[string]any `yaml:",inline"`
}

func parseFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, err
	}
	return &f, nil
}

// seeder resolves references while records are created
type seeder struct {
	refs  map[string]string
	users map[string]*auth.Identity
	admin *auth.Identity
}

func (s *seeder) actor(ref string) (*auth.Identity, error) {
	if ref == "" {
		return s.admin, nil
	}
	who, ok := s.users[ref]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", ref)
	}
	return who, nil
}

func (s *seeder) resolve(v any) (any, error) {
	switch v := v.(type) {
	case string:
		ref, ok := strings.CutPrefix(v, "@")
		if !ok {
			return v, nil
		}
		id, ok := s.refs[ref]
		if !ok {
			return nil, fmt.Errorf("unknown reference %q", v)
		}
		return id, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := s.resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := s.resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func (s *seeder) body(rec FixtureRecord) ([]byte, error) {
	fields, err := s.resolve(rec.Fields)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return json.Marshal(fields)
}

// creator adapts a Service.Create of any record type
type creator func(ctx context.Context, who *auth.Identity, body []byte) (core.Document, error)

func seed(ctx context.Context, app *features.App, f *Fixture, log logrus.FieldLogger) (map[string]string, error) {
	s := &seeder{
		refs:  make(map[string]string),
		users: make(map[string]*auth.Identity),
		admin: &auth.Identity{Subject: "seed", Role: auth.RoleAdmin},
	}

	groups := []struct {
		name    string
		records []FixtureRecord
		create  creator
	}{
		{features.CollectionUsers, f.Users, app.Users.Create},
		{features.CollectionTags, f.Tags, app.Tags.Create},
		{features.CollectionLocations, f.Locations, app.Locations.Create},
		{features.CollectionEvents, f.Events, app.Events.Create},
		{features.CollectionPosts, f.Posts, app.Posts.Create},
	}

	for _, g := range groups {
		for i, rec := range g.records {
			where := fmt.Sprintf("%s[%d]", g.name, i)
			if rec.Ref != "" {
				where = fmt.Sprintf("%s %q", g.name, rec.Ref)
				if _, dup := s.refs[rec.Ref]; dup {
					return nil, fmt.Errorf("%s: duplicate ref", where)
				}
			}
			who, err := s.actor(rec.As)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			body, err := s.body(rec)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			doc, err := g.create(ctx, who, body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}

			id := doc.ID()
			key := rec.Ref
			if key == "" {
				key = fmt.Sprintf("%s#%d", g.name, i)
			}
			s.refs[key] = id
			if g.name == features.CollectionUsers {
				role, _ := doc["role"].(string)
				s.users[key] = &auth.Identity{Subject: id, Role: role}
			}
			log.WithFields(logrus.Fields{"collection": g.name, "id": id}).Debug("seeded record")
		}
	}
	return s.refs, nil
}
