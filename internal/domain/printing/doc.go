// Package printing contains the Printing bounded context.
// This context describes the business documents a tenant issues to its
// customers (invoices, quotes and receipts) as immutable snapshots that
// the rendering engine turns into paginated PDF files.
package printing
