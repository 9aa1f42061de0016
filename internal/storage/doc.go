// Package storage abstracts where preview images live. Paths are slash
// separated and relative to the backend root: a directory on local disk or a
// key prefix in an S3-compatible bucket.
package storage
