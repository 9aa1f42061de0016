// Package content is the gateway to the host content store: content items,
// their metadata, and the sites they belong to.
//
// Gateway is the narrow interface the preview generator consumes. Store is the
// SQLite implementation shared with the queue and settings tables; it also
// runs registered deletion hooks so preview files are removed before their
// content item disappears.
package content
