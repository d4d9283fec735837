// Package wiki talks to the MediaWiki action API: it discovers titles through category
// pagination or random sampling and fetches parsed article bodies.
package wiki
