// Package pkg holds the libraries behind automation, a keyed reconciliation
// engine that keeps a live element tree in sync with a list of models.
//
// # Overview
//
// Each child of a composition root is a [model] whose attributes render
// through a template into a virtual tree. When the model changes, the new
// tree is diffed against the old one and only the resulting patches touch
// the live elements. The packages split along that flow:
//
//  1. [vtree] - virtual trees, templates, the differ and patch sets
//  2. [dom] - the live element tree and the patcher
//  3. [model] - observable attribute bags, kinds and backing-data fetch
//  4. [container] - the cid-keyed registry of mounted children
//  5. [composite] - the engine, the control loop, the root and realtime channels
//  6. [events] - the root-wide event bus
//  7. [spot] - ready-made list and news roots
//
// Supporting packages:
//
//   - [errors] - coded errors shared by every layer
//   - [observability] - render, fetch and cache hooks
//   - [cache] - file, Redis and null caches for fetched data
//   - [source] - HTTP, file and MongoDB backing-data sources
//   - [snapshot] - persisted children of a root
//   - [httputil] - retry helpers for sources
//
// # Data Flow
//
//	model attributes
//	       ↓
//	  [vtree] Builder (template → virtual tree)
//	       ↓
//	  [vtree] Diff (old tree, new tree → patch set)
//	       ↓
//	  [dom] Patch (patch set → live elements)
//
// # Quick Start
//
//	target := dom.NewElement("ul")
//	root, err := composite.NewRoot(composite.Config{
//	    Target:   target,
//	    Template: vtree.MustHTMLTemplate("item", `<li>{{.title}}</li>`),
//	})
//	if err != nil {
//	    return err
//	}
//	defer root.Close()
//
//	m, _ := root.Add(model.Attributes{"title": "Hello"})
//	m.Set("title", "World") // one text patch on the mounted <li>
//
// Everything that touches a root runs on its control thread; see
// [composite.Loop].
//
// [vtree]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/vtree
// [dom]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/dom
// [model]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/model
// [container]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/container
// [composite]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/composite
// [composite.Loop]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/composite#Loop
// [events]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/events
// [spot]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/spot
// [errors]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/observability
// [cache]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/cache
// [source]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/source
// [snapshot]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/snapshot
// [httputil]: https://pkg.go.dev/github.com/matzehuels/automation/pkg/httputil
package pkg
