// Package feed downloads and parses YML commerce feeds (the XML catalogue
// format with <categories> and <offers>).
package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"quotecast/internal/models"
)

// node is a generic XML element.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []node     `xml:",any"`
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// walk calls fn for n and every descendant in document order.
func (n *node) walk(fn func(*node)) {
	fn(n)
	for i := range n.Nodes {
		n.Nodes[i].walk(fn)
	}
}

// Parse reads a YML document and returns its offers.
//
// For each <offer>: its attributes become fields; each child element is
// stored under its tag name (the last occurrence wins) and the child's own
// attributes are stored under their names; <param name="X">v</param> is
// stored as X=v; every <picture> is collected into Pictures and the first
// one is also stored as "picture". When the document has a <categories>
// block, "category" is set from the offer's categoryId.
func Parse(r io.Reader) ([]models.Offer, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	var root node
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	categories := map[string]string{}
	var offers []*node
	root.walk(func(n *node) {
		switch n.XMLName.Local {
		case "categories":
			for i := range n.Nodes {
				cat := &n.Nodes[i]
				if cat.XMLName.Local != "category" {
					continue
				}
				if id, ok := cat.attr("id"); ok && id != "" {
					categories[id] = strings.TrimSpace(cat.Text)
				}
			}
		case "offer":
			offers = append(offers, n)
		}
	})

	result := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		result = append(result, parseOffer(o, categories))
	}
	return result, nil
}

func parseOffer(o *node, categories map[string]string) models.Offer {
	offer := models.Offer{Fields: map[string]string{}}
	for _, a := range o.Attrs {
		offer.Fields[a.Name.Local] = a.Value
	}

	for i := range o.Nodes {
		child := &o.Nodes[i]
		tag := child.XMLName.Local
		text := strings.TrimSpace(child.Text)

		switch tag {
		case "param":
			if name, ok := child.attr("name"); ok && name != "" {
				offer.Fields[name] = text
			}
			continue
		case "picture":
			if text != "" {
				offer.Pictures = append(offer.Pictures, text)
				if _, ok := offer.Fields["picture"]; !ok {
					offer.Fields["picture"] = text
				}
			}
			continue
		}

		offer.Fields[tag] = text
		for _, a := range child.Attrs {
			offer.Fields[a.Name.Local] = a.Value
		}
	}

	if id := strings.TrimSpace(offer.Fields["categoryId"]); id != "" && len(categories) > 0 {
		offer.Fields["category"] = categories[id]
	}
	return offer
}
