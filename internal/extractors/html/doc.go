// Package html provides an Extractor for HTML documents.
// It walks the parsed node tree, drops scripts and styles, and keeps
// block-level separation so sentences from different blocks never merge.
package html
