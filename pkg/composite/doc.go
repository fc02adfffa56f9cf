// Package composite implements the composition root: a keyed set of children,
// each a model rendered through a template into a live element, kept in sync
// by re-rendering, diffing and patching whenever the model changes.
//
// # Lifecycle
//
// [Root.Add] creates a model, assigns its cid, renders and mounts its element
// at the end of the render target and binds the model's change notification
// to [Root.Composite]. [Root.Remove] releases that binding, closes the
// child's realtime channel and detaches the element.
//
// # Reconciliation
//
// [Engine.Composite] re-reads the model's current attributes, renders a fresh
// tree, diffs it against the stored tree and patches the stored element. The
// fresh tree and the element returned by the patcher replace the stored ones.
// Each child is Clean or Dirty; composite is the only way back to Clean.
//
// # Concurrency
//
// A root has one control thread, modelled by [Loop]. Backing-data fetches
// and realtime channel reads run on their own goroutines and post their
// completions to the loop, so container and model state is only touched
// from one goroutine:
//
//	root, _ := composite.NewRoot(composite.Config{Target: ul, Template: tpl})
//	done := root.Start(ctx) // the loop owns the root from here on
//	err := root.Do(ctx, func() error {
//	    _, err := root.Add(model.Attributes{"title": "Hello"})
//	    return err
//	})
//
// # Realtime channels
//
// When a model's kind yields a ws:// or wss:// URL, Add opens a [Channel].
// Every inbound JSON object is merged onto the model silently, "notify-change"
// fires, and the child is reconciled directly. Malformed payloads are logged
// and dropped; transport failures end the channel for good.
package composite
