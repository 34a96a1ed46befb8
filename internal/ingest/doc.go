// Package ingest runs reference-data ingestion jobs.
//
// A job lists the files published in a date window, then for each file
// downloads and extracts the archive, parses the reference document and
// appends its records to the job's lookup table. Files are processed on a
// bounded worker pool; one failed file does not stop the others.
package ingest
