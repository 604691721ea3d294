package evtx

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const xmlExt = ".xml"

// XMLSource reads event log exports saved as XML, as written by Event
// Viewer or wevtutil. UTF-16 exports are decoded through their BOM.
type XMLSource struct{}

// NewXMLSource returns a reader for XML exports.
func NewXMLSource() *XMLSource {
	return &XMLSource{}
}

func (*XMLSource) Name() string { return KindXML }

func (*XMLSource) Ext() string { return xmlExt }

// Open streams the events of an XML export.
func (*XMLSource) Open(_ context.Context, path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evtx: open %s: %w", path, err)
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return newScanStream(transform.NewReader(f, dec), MaxRecordSize, nil, f.Close), nil
}
