// Package crawler defines the core types, interfaces, and counters shared by
// the wiki crawl pipeline: title discovery, fetching, document upserts, and
// the worker pool that ties them together.
package crawler
