package identifier

import (
	"encoding/xml"
	"io"
	"os"
	"strings"
)

const dublinCoreNamespace = "http://purl.org/dc/elements/1.1/"

// dcIdentifiers returns the text of every Dublin Core <identifier>
// element in the METS document at metsPath, in document order.
func dcIdentifiers(metsPath string) ([]string, error) {
	return scanMets(metsPath, func(element xml.StartElement) bool {
		return element.Name.Space == dublinCoreNamespace &&
			element.Name.Local == "identifier"
	})
}

// accessionNumbers returns the text of every <altRecordID> element
// whose TYPE attribute mentions an accession number.
func accessionNumbers(metsPath string) ([]string, error) {
	return scanMets(metsPath, func(element xml.StartElement) bool {
		if element.Name.Local != "altRecordID" {
			return false
		}
		for _, attr := range element.Attr {
			if attr.Name.Local == "TYPE" &&
				strings.Contains(strings.ToLower(attr.Value), "accession") {
				return true
			}
		}
		return false
	})
}

// scanMets streams through the XML document at metsPath and collects
// the character data of every element matched by want. METS files for
// large packages can run to hundreds of megabytes, so we never load
// the whole document.
func scanMets(metsPath string, want func(xml.StartElement) bool) ([]string, error) {
	file, err := os.Open(metsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make([]string, 0)
	decoder := xml.NewDecoder(file)
	collecting := false
	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch element := token.(type) {
		case xml.StartElement:
			if want(element) {
				collecting = true
				text.Reset()
			}
		case xml.CharData:
			if collecting {
				text.Write(element)
			}
		case xml.EndElement:
			if collecting {
				value := strings.TrimSpace(text.String())
				if value != "" {
					values = append(values, value)
				}
				collecting = false
			}
		}
	}
	return values, nil
}
