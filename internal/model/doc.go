// Package model defines shared data types used across the reference-data ingester.
//
// Conventions:
//   - Dates: time.Time truncated to UTC midnight; windows are inclusive at both ends
//   - Identifiers: ISIN (instrument) is the lookup key, LEI (issuer) is the value
//   - Type codes: the first letter of the CFI code, upper case (E = equities, D = debt)
package model
