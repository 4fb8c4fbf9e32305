// Package report renders an archived item as a single document.
//
// Writers exist for JSON, Markdown and HTML. They only read the item; the
// formatter modules decide where the document is written and turn it into a
// media asset.
package report
