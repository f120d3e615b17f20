// Package models defines the request and response records exchanged between
// an orchestrator and the three skills: trend ingestion, media generation and
// publish intent execution.
//
// JSON field names are camelCase and must not change; downstream consumers
// match on them literally.
package models
