// Package filters implements the per-file transformation stages a pipeline
// task can chain: markup, stylesheet and script minification, Sass
// compilation, vendor prefixing, source maps and image optimization.
//
// Filters are looked up by name in a Registry so build scripts can refer to
// them declaratively.
package filters
