// Package apod defines the shared domain types, error kinds, and collaborator
// interfaces for the picture-of-the-day archiver.
package apod
