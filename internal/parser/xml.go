package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/geopoi/importer/internal/encoding"
)

// xmlElement is the on-wire shape of one POI element. Both element names
// seen in the wild ("DATA_RECORD" from bulk exports, "poi" from hand-made
// files) decode into it.
type xmlElement struct {
	ID          string `xml:"pid"`
	Name        string `xml:"pname"`
	Category    string `xml:"pcategory"`
	Latitude    string `xml:"platitude"`
	Longitude   string `xml:"plongitude"`
	Ratings     string `xml:"pratings"`
	Description string `xml:"description"`
}

// XMLParser walks an XML document's token stream and treats every
// DATA_RECORD or poi element as one record. DecodeElement consumes each
// element's subtree as it is visited, so only one record's worth of tree
// is ever held in memory.
type XMLParser struct {
	base

	file *os.File
	dec  *xml.Decoder

	elem int
	done bool
}

// NewXML opens path for incremental event parsing.
func NewXML(path string, opts Options) (*XMLParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xml file: %w", err)
	}

	dec := xml.NewDecoder(f)
	dec.CharsetReader = encoding.CharsetReader

	return &XMLParser{
		base: newBase(path, opts.BatchSize, "xml"),
		file: f,
		dec:  dec,
	}, nil
}

// Next assembles the next batch of valid records from the token stream.
func (p *XMLParser) Next() ([]Record, error) {
	if p.done {
		return nil, io.EOF
	}

	batch := make([]Record, 0, p.batchSize)

	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			p.done = true
			p.log.Info("xml parsing complete", "processed", p.processed)
			if len(batch) > 0 {
				return batch, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			p.done = true
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "DATA_RECORD" && start.Name.Local != "poi" {
			continue
		}

		p.elem++
		where := fmt.Sprintf("element %d", p.elem)

		var el xmlElement
		if err := p.dec.DecodeElement(&el, &start); err != nil {
			p.recordError(where, err.Error(), nil)
			continue
		}

		rec, accepted := p.accept(el.raw(), where)
		if !accepted {
			continue
		}

		batch = append(batch, rec)
		if len(batch) >= p.batchSize {
			return batch, nil
		}
	}
}

// raw maps the decoded element into the canonical raw shape. Empty tags
// are treated as absent so required-field validation fires for them.
func (el xmlElement) raw() map[string]any {
	raw := make(map[string]any, 7)
	put := func(key, value string) {
		if v := CleanString(value, 0); v != "" {
			raw[key] = v
		}
	}
	put("id", el.ID)
	put("name", el.Name)
	put("category", el.Category)
	put("latitude", el.Latitude)
	put("longitude", el.Longitude)
	put("ratings", el.Ratings)
	put("description", el.Description)
	return raw
}

// Close releases the underlying file.
func (p *XMLParser) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
