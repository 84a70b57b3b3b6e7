package app

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"gauge/pkg/domain"
)

var (
	itemTagPattern     = regexp.MustCompile(`\[ITEM_ID:\s*([^\]\s]+)\s*\]`)
	spaceRunPattern    = regexp.MustCompile(`[ \t]{2,}`)
	spacePunctPattern  = regexp.MustCompile(`[ \t]+([.,;:!?)])`)
	lineTrailPattern   = regexp.MustCompile(`[ \t]+\n`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
	errNoBlocks        = errors.New("no content blocks")
	errUnknownBlockTyp = errors.New("unknown block type")
)

// Reply is a model answer ready for display.
type Reply struct {
	Text  string
	Items []domain.ClosetItem
}

type replyDocument struct {
	Blocks []replyBlock `json:"blocks"`
}

type replyBlock struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	ItemID string `json:"itemId,omitempty"`
}

// ParseReply reads a model answer. The structured block format is tried
// first; otherwise inline [ITEM_ID:x] tags are collected and stripped from
// the text. Referenced ids are resolved against closet. The returned Reply
// is always usable; a non-nil *ReplyError reports a malformed structured
// reply or ids that did not resolve.
func ParseReply(raw string, closet []domain.ClosetItem) (Reply, error) {
	var (
		text      string
		ids       []string
		malformed error
	)
	if body, ok := extractJSON(raw); ok && strings.Contains(body, `"blocks"`) {
		var doc replyDocument
		err := json.Unmarshal([]byte(body), &doc)
		if err == nil {
			text, ids, err = readBlocks(doc)
		}
		if err != nil {
			malformed = err
			text, ids = stripItemTags(raw)
		}
	} else {
		text, ids = stripItemTags(raw)
	}

	items, unresolved := resolveItems(ids, closet)
	reply := Reply{Text: text, Items: items}
	if malformed != nil || len(unresolved) > 0 {
		return reply, &ReplyError{Malformed: malformed, Unresolved: unresolved}
	}
	return reply, nil
}

func readBlocks(doc replyDocument) (string, []string, error) {
	if len(doc.Blocks) == 0 {
		return "", nil, errNoBlocks
	}
	var (
		texts []string
		ids   []string
	)
	for _, block := range doc.Blocks {
		switch block.Type {
		case "text":
			text, inline := stripItemTags(block.Text)
			if text != "" {
				texts = append(texts, text)
			}
			ids = append(ids, inline...)
		case "item":
			if id := strings.TrimSpace(block.ItemID); id != "" {
				ids = append(ids, id)
			}
		default:
			return "", nil, errUnknownBlockTyp
		}
	}
	return strings.Join(texts, "\n\n"), ids, nil
}

// stripItemTags removes inline item tags and tidies the spacing they leave.
func stripItemTags(s string) (string, []string) {
	var ids []string
	for _, m := range itemTagPattern.FindAllStringSubmatch(s, -1) {
		ids = append(ids, m[1])
	}
	s = itemTagPattern.ReplaceAllString(s, "")
	s = spaceRunPattern.ReplaceAllString(s, " ")
	s = spacePunctPattern.ReplaceAllString(s, "$1")
	s = lineTrailPattern.ReplaceAllString(s, "\n")
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s), ids
}

// resolveItems looks ids up in the closet, keeping first-mention order and
// dropping repeats.
func resolveItems(ids []string, closet []domain.ClosetItem) ([]domain.ClosetItem, []string) {
	byID := make(map[string]domain.ClosetItem, len(closet))
	for _, item := range closet {
		byID[item.ID] = item
	}
	seen := make(map[string]struct{}, len(ids))
	var (
		items      []domain.ClosetItem
		unresolved []string
	)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if item, ok := byID[id]; ok {
			items = append(items, item)
		} else {
			unresolved = append(unresolved, id)
		}
	}
	return items, unresolved
}

// extractJSON returns the JSON object in a reply, tolerating markdown code
// fences and prose around it.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
