package expr

import "fmt"

// ResolveAttr turns a bare identifier or a #placeholder into the real
// attribute name, consulting names (the caller-supplied
// ExpressionAttributeNames map) for placeholders.
func ResolveAttr(names map[string]string, tok Token) (string, error) {
	if tok.Kind == KindPlaceholder {
		real, ok := names[tok.Text]
		if !ok {
			return "", fmt.Errorf("expr: unresolved placeholder %s", tok.Text)
		}
		return real, nil
	}
	if tok.Kind == KindIdent {
		return tok.Text, nil
	}
	return "", fmt.Errorf("expr: expected attribute name, got %q", tok.Text)
}
