// Package pipeline holds the immutable task graph and the runner that
// executes it.
//
// A graph is built once with NewGraph from a set of Task declarations and is
// never mutated afterwards. Transform tasks read files matched by their
// source globs, push each through an ordered filter chain and write the
// results under their destination. Series and parallel tasks compose other
// tasks by name. Builtin tasks (clean, wiredep, watch, serve, report) are
// implemented by the runner itself.
//
// A transform task that fails is isolated: the runner records a failed
// Result, sends one notification and lets its siblings finish. Builtin and
// composite failures propagate to the caller.
package pipeline
