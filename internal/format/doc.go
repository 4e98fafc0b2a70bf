// Package format turns cached pages into a self-contained offline archive.
//
// The format stage never touches the network. For every page in the index
// it reads the cached content, pulls out the title, publish date and body
// with CSS selectors, and pours them into a presentation template with
// working previous/next links. It then writes a table of contents as HTML
// and Markdown, copies the stylesheet, and merges the extracted fields back
// into the index.
//
// # Components
//
//   - SelectorExtractor: goquery based extraction of typed fields
//   - Renderer: fills the presentation template
//   - Formatter: drives both over the whole index on a bounded worker group
//
// Pages that fail extraction are reported and skipped; one broken chapter
// does not stop the archive from being built.
package format
