// Package extract turns brokerage holdings pages into validated holdings.
//
// The pages are not schema-stable, so extraction works on the raw markup
// text with a chain of small pattern matchers rather than a DOM: Segment
// splits a page into typed sections, Rows yields the data rows of a section,
// ClassifyFields locates the ticker and numeric cells of a row, and
// BuildHolding constructs the holding. Problems with a single header, row or
// field are reported as Warnings and never abort the page.
package extract
