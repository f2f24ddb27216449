// Package format rewrites URLs and texts inside block HTML so that it fits the
// embedding site.
package format

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fragment parses s as the children of a <div> so that head-only elements
// such as <script> or <link> stay where they are.
func fragment(s string) (*goquery.Selection, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(s), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(root).Selection, nil
}

// rewrite applies fn to the matches of selector and re-renders the fragment.
// The input is returned untouched when nothing matches or parsing fails.
func rewrite(s, selector string, fn func(*goquery.Selection)) string {
	root, err := fragment(s)
	if err != nil {
		return s
	}
	sel := root.Find(selector)
	if sel.Length() == 0 {
		return s
	}
	fn(sel)
	out, err := root.Html()
	if err != nil {
		return s
	}
	return out
}

// ImgSrc prefixes the src of every image with baseURL.
func ImgSrc(s, baseURL string) string {
	return rewrite(s, "img[src]", func(sel *goquery.Selection) {
		sel.Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			img.SetAttr("src", baseURL+src)
		})
	})
}

// SiteName replaces the text of the first element matching selector.
func SiteName(s, selector, name string) string {
	return rewrite(s, selector, func(sel *goquery.Selection) {
		sel.First().SetText(name)
	})
}

// LocaleLink points the first element matching selector at linkURL with its
// l parameter switched to the other language, and sets its text.
func LocaleLink(s, selector, text, linkURL string) string {
	u, err := url.Parse(linkURL)
	if err != nil {
		return s
	}
	q := u.Query()
	if q.Get("l") == "en" {
		q.Set("l", "sv")
	} else {
		q.Set("l", "en")
	}
	u.RawQuery = q.Encode()

	return rewrite(s, selector, func(sel *goquery.Selection) {
		link := sel.First()
		if text != "" {
			link.SetText(text)
		}
		link.SetAttr("href", u.String())
	})
}
