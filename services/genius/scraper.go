package genius

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	headerPattern     = regexp.MustCompile(`(?s)^.*?Lyrics`)
	sectionTagPattern = regexp.MustCompile(`\[.*?\]`)
	alsoLikePattern   = regexp.MustCompile(`(?i)You might also like.*?\n`)
	embedPattern      = regexp.MustCompile(`(?m)\d+Embed$`)
	seeLivePattern    = regexp.MustCompile(`(?i)See.*?Live.*?\n`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// ScrapeLyrics extracts and cleans the lyrics from a song page.
// Containers marked data-lyrics-container="true" are preferred; older pages
// are matched on the Lyrics__Container class.
func ScrapeLyrics(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("error parsing page: %w", err)
	}

	containers := findDivs(doc, func(n *html.Node) bool {
		return attr(n, "data-lyrics-container") == "true"
	})
	if len(containers) == 0 {
		containers = findDivs(doc, func(n *html.Node) bool {
			return strings.Contains(attr(n, "class"), "Lyrics__Container")
		})
	}
	if len(containers) == 0 {
		return "", ErrNoLyrics
	}

	parts := make([]string, 0, len(containers))
	for _, div := range containers {
		var b strings.Builder
		collectText(div, &b)
		parts = append(parts, b.String())
	}

	lyrics := CleanLyrics(strings.TrimSpace(strings.Join(parts, "\n")))
	if lyrics == "" {
		return "", ErrNoLyrics
	}
	return lyrics, nil
}

// CleanLyrics strips page furniture from scraped lyrics: the contributor
// header, a leading quoted description, [Section] tags, recommendation and
// embed footers. Lines are trimmed and runs of blank lines collapsed.
func CleanLyrics(lyrics string) string {
	lyrics = headerPattern.ReplaceAllString(lyrics, "")
	lyrics = stripDescription(lyrics)
	lyrics = sectionTagPattern.ReplaceAllString(lyrics, "")
	lyrics = alsoLikePattern.ReplaceAllString(lyrics, "")
	lyrics = embedPattern.ReplaceAllString(lyrics, "")
	lyrics = seeLivePattern.ReplaceAllString(lyrics, "")

	lines := strings.Split(lyrics, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	lyrics = strings.Join(lines, "\n")

	lyrics = blankRunPattern.ReplaceAllString(lyrics, "\n\n")
	return strings.TrimSpace(lyrics)
}

// stripDescription drops a leading `"..."` song description up to the first
// line that starts with an upper-case letter.
func stripDescription(s string) string {
	if !strings.HasPrefix(s, `"`) {
		return s
	}
	end := strings.Index(s[1:], `"`)
	if end < 0 {
		return s
	}
	rest := s[end+2:]
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] == '\n' && rest[i+1] >= 'A' && rest[i+1] <= 'Z' {
			return rest[i:]
		}
	}
	return s
}

func findDivs(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Div && match(n) {
			found = append(found, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			b.WriteByte('\n')
			return
		case atom.Script, atom.Style:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
