// Package scaffold generates a new front-end project from embedded templates.
// It powers "madfront new": manifests, the build script, the starter markup,
// stylesheet and script, and the static extras, laid out under src/.
package scaffold
