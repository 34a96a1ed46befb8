package api

import (
	"fmt"
	"strings"
)

// solrPage renders a search-result page in the register's XML layout.
func solrPage(total int, names ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<response>\n")
	b.WriteString(`<lst name="responseHeader"><int name="status">0</int><int name="QTime">1</int></lst>` + "\n")
	fmt.Fprintf(&b, `<result name="response" numFound="%d" start="0">`+"\n", total)
	for _, name := range names {
		fmt.Fprintf(&b, `<doc><str name="checksum">abc</str><str name="file_name">%s</str>`+
			`<str name="download_link">http://files.example.com/%s</str>`+
			`<date name="publication_date">2024-01-06T00:00:00Z</date></doc>`+"\n", name, name)
	}
	b.WriteString("</result>\n</response>\n")
	return b.String()
}
