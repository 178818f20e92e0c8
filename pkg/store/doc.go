// Package store persists validated plot options and attaches them to element
// graphs.
//
// A Store loads and saves one opts.Expanded snapshot per Ref. Two kinds of
// snapshots exist for each backend: the session defaults (Ref.ID ==
// DefaultsID) and custom records addressed by the option ids carried on
// elements.
//
// Tree implements opts.Storage on top of a Store:
//
//	Engine.Opts -> opts.Apply -> Tree.SetOptions -> Store.Save
//
// and resolves the effective options of an element by layering defaults and
// custom records through opts.Stack:
//
//	Tree.Resolve -> opts.ElementStack -> Stack.Merge -> *opts.Layered[opts.Grouped]
//
// Every SetOptions call allocates fresh option ids, so elements that shared
// the previous id keep resolving to the previous options.
package store
