package convert

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/miku/jurikit/normal"
	"github.com/miku/jurikit/schema"
)

// Extract returns the normalized leading text of the first node below n
// matching the relative XPath path. Absence is not an error: a missing node,
// a node without text or an invalid path all yield the empty string.
func Extract(n *xmlquery.Node, path string) string {
	return extractMode(n, path, schema.Text)
}

// ExtractDeep is like Extract, but uses the text of all descendants, so markup
// nested in the element does not cut the text short.
func ExtractDeep(n *xmlquery.Node, path string) string {
	return extractMode(n, path, schema.Deep)
}

// ExtractAttr returns the attribute attr of the first node matching path,
// verbatim, or the empty string when the node or the attribute is absent.
func ExtractAttr(n *xmlquery.Node, path, attr string) string {
	expr, err := xpath.Compile(path)
	if err != nil {
		return ""
	}
	return attrValue(find(n, expr), attr)
}

func extractMode(n *xmlquery.Node, path string, mode schema.Mode) string {
	expr, err := xpath.Compile(path)
	if err != nil {
		return ""
	}
	return textValue(find(n, expr), mode)
}

// fieldValue applies a compiled rule to a block element.
func fieldValue(block *xmlquery.Node, f *schema.Field) string {
	node := find(block, f.Expr())
	if f.Attr != "" {
		return attrValue(node, f.Attr)
	}
	return textValue(node, f.Mode)
}

func find(n *xmlquery.Node, expr *xpath.Expr) *xmlquery.Node {
	if n == nil || expr == nil {
		return nil
	}
	return xmlquery.QuerySelector(n, expr)
}

func textValue(n *xmlquery.Node, mode schema.Mode) string {
	if n == nil {
		return ""
	}
	if mode == schema.Deep {
		return normal.Clean(n.InnerText())
	}
	return normal.Clean(leadingText(n))
}

func attrValue(n *xmlquery.Node, attr string) string {
	if n == nil {
		return ""
	}
	return n.SelectAttr(attr)
}

// leadingText returns the text of n up to its first child element. Comments
// are skipped, like a parser that drops them would.
func leadingText(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			sb.WriteString(c.Data)
		case xmlquery.CommentNode:
		default:
			return sb.String()
		}
	}
	return sb.String()
}
