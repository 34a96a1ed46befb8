// Package api provides the client for the ESMA FIRDS file register.
//
// The register is a Solr index queried by publication date:
//   - Search: https://registers.esma.europa.eu/solr/esma_registers_firds_files/select
//   - Each result document carries file_name and download_link fields
//   - Downloads are zip archives holding a single ISO 20022 XML document
//
// Requests are rate limited and never retried; callers restart the failed unit.
package api
