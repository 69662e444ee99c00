// Package storage persists the association's records and documents.
//
// # Overview
//
// Open connects to PostgreSQL or SQLite through sqlx and RunMigrations creates
// the schema. A RecordStore runs list/get/insert/update/delete queries against
// one Table. Tables allowlist their writable and filterable columns, so request
// payloads never reach SQL as identifiers.
//
//	db, err := storage.Open(ctx, storage.DBConfig{Driver: "postgres", DSN: dsn})
//	members := storage.NewRecordStore(db, storage.Members)
//	rows, total, err := members.List(ctx, storage.ListQuery{Limit: 10, Search: "ayşe"})
//
// # Errors
//
// Missing rows come back as a 404 apierror.Error wrapping ErrNotFound. Unique
// violations from either driver are tagged DUPLICATE_ERROR, other constraint
// violations BAD_REQUEST. Driver messages stay in the error chain for logs.
//
// # Documents
//
// DocumentStore writes file bodies to S3 (or any S3-compatible endpoint such as
// MinIO) under documents/<beneficiary>/<uuid><ext> with a SHA-256 checksum in
// the object metadata, then records the upload in the documents table.
package storage
