// Package refdata parses ISO 20022 financial instrument reference data
// reports (auth.017) into ISIN/LEI pairs.
//
// A report is wrapped in a business data envelope:
//
//	BizData (head.003)
//	  Hdr/AppHdr (head.001)
//	  Pyld/Document (auth.017)
//	    FinInstrmRptgRefDataRpt/RefData*
//	      FinInstrmGnlAttrbts/Id   ISIN
//	      Issr                     LEI
//
// Parsing streams the document, so multi-gigabyte files are fine.
package refdata
