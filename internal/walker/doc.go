// Package walker discovers the regular files a sort run copies.
//
// Files is a lazy iter.Seq backed by filepath.WalkDir, so the sorter can start
// copying before the traversal finishes and large trees never sit in memory.
package walker
