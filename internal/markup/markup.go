// Package markup renders provider output into Telegram's HTML subset and
// splits long messages into size-limited chunks. Code blocks are extracted
// before any other rewriting so their content is never corrupted; their
// interiors get HTML-entity escaping only.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMessageLimit is Telegram's practical per-message character budget.
const DefaultMessageLimit = 4000

var (
	fenceRe      = regexp.MustCompile("(?s)```([a-zA-Z0-9_+.-]*)\\n?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\\n]+)`")
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+?)\*`)
	bulletRe     = regexp.MustCompile(`(?m)^\* `)
	newlinesRe   = regexp.MustCompile(`\n{3,}`)

	preOpenRe = regexp.MustCompile(`^<pre(?:><code[^>]*>)?`)
)

func escapeEntities(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAngles(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// Format converts the bot's markdown dialect into Telegram HTML: fenced code
// blocks become <pre><code class="language-...">, inline code becomes <code>,
// **bold** and *italic* become <b>/<i>, leading "* " list markers become a
// bullet glyph. Stray angle brackets outside code are escaped; runs of three
// or more newlines collapse to two.
func Format(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	var stash []string
	put := func(rendered string) string {
		stash = append(stash, rendered)
		return fmt.Sprintf("\x00%d\x00", len(stash)-1)
	}

	text = fenceRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := fenceRe.FindStringSubmatch(m)
		lang, code := sub[1], sub[2]
		if lang != "" {
			return put(`<pre><code class="language-` + lang + `">` + escapeEntities(code) + "</code></pre>")
		}
		return put("<pre>" + escapeEntities(code) + "</pre>")
	})

	text = inlineCodeRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := inlineCodeRe.FindStringSubmatch(m)
		return put("<code>" + escapeEntities(sub[1]) + "</code>")
	})

	text = escapeAngles(text)
	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = bulletRe.ReplaceAllString(text, "• ")
	text = italicRe.ReplaceAllString(text, "<i>$1</i>")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	for i, rendered := range stash {
		text = strings.Replace(text, fmt.Sprintf("\x00%d\x00", i), rendered, 1)
	}
	return text
}

// Split cuts formatted text into chunks of at most maxLen characters on line
// boundaries, hard-splitting any single line longer than the budget. A code
// block cut at a chunk boundary is closed before the cut and reopened with a
// fresh tag at the start of the next chunk, so no chunk ever leaves a block
// dangling.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMessageLimit
	}
	if maxLen < 64 {
		maxLen = 64
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	// Room reserved for the widest closing sequence a flush may append.
	const reserve = len("\n</code></pre>")

	var (
		chunks []string
		cur    strings.Builder
		open   string
	)

	closerFor := func(open string) string {
		if strings.Contains(open, "<code") {
			return "</code></pre>"
		}
		return "</pre>"
	}

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		chunk := cur.String()
		if open != "" {
			chunk += "\n" + closerFor(open)
		}
		chunks = append(chunks, chunk)
		cur.Reset()
		if open != "" {
			cur.WriteString(open)
		}
	}

	appendLine := func(line string) {
		for {
			sep := ""
			if cur.Len() > 0 {
				sep = "\n"
			}
			budget := maxLen - reserve - cur.Len() - len(sep)
			if len(line) <= budget {
				cur.WriteString(sep)
				cur.WriteString(line)
				open = trackOpen(open, line)
				return
			}
			if budget <= 0 {
				flush()
				continue
			}
			head := line[:budget]
			cur.WriteString(sep)
			cur.WriteString(head)
			open = trackOpen(open, head)
			line = line[budget:]
			flush()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		appendLine(line)
	}
	if cur.Len() > 0 && cur.String() != open {
		chunk := cur.String()
		if open != "" {
			chunk += "\n" + closerFor(open)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// trackOpen scans one line of formatted text and returns the opening tag of
// the code block the cursor ends up inside, or "" when outside any block.
func trackOpen(open, line string) string {
	for i := 0; i < len(line); {
		idx := strings.Index(line[i:], "<")
		if idx < 0 {
			break
		}
		i += idx
		if strings.HasPrefix(line[i:], "</pre>") {
			open = ""
			i += len("</pre>")
			continue
		}
		if m := preOpenRe.FindString(line[i:]); m != "" {
			open = m
			i += len(m)
			continue
		}
		i++
	}
	return open
}
