// Package fsutil holds the small filesystem helpers shared by the scaffolder
// and the pipeline: writing files with their parent directories, emptying an
// output directory and measuring it.
package fsutil
