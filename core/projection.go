package core

// Projection is a set of top-level field flags applied to read results.
// All-true flags form an inclusion list (id is always kept); false flags
// exclude fields.
type Projection map[string]bool

// Apply returns a projected copy of doc. An empty projection returns doc unchanged.
func (p Projection) Apply(doc Document) Document {
	if len(p) == 0 || doc == nil {
		return doc
	}

	inclusive := false
	for _, keep := range p {
		if keep {
			inclusive = true
			break
		}
	}

	out := make(Document, len(doc))
	for k, v := range doc {
		keep, listed := p[k]
		switch {
		case k == "id":
			out[k] = v
		case inclusive && listed && keep:
			out[k] = v
		case !inclusive && !listed:
			out[k] = v
		}
	}
	return out
}

// ApplyAll projects every document in place of the input slice
func (p Projection) ApplyAll(docs []Document) []Document {
	if len(p) == 0 {
		return docs
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = p.Apply(d)
	}
	return out
}
