// Package pipeline runs the per-post processing steps of a crawl.
//
// A Job carries one post URL through the steps in order: fetch the article,
// extract its fields, rebuild the comment forest, download the assets and
// persist everything. The Pipeline stops at the first failing step and
// names that step in the returned error. Problems a step recovers from,
// such as a skipped comment or a dropped asset, are collected on the Job
// as diagnostics instead.
package pipeline
