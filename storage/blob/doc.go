// Package blob provides storage.BlobStore implementations for the raw bytes
// of registered sources.
//
// Two backends are included: a BadgerDB-backed LocalStore for single-node
// deployments and tests, and an S3Store for shared deployments against S3 or
// an S3-compatible service. Buckets follow the org-<id>-uploads naming
// produced by storage.UploadBucket.
package blob
