package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/dotmd/dotmd/internal/model"
)

var (
	wikilinkPattern = regexp.MustCompile(`\[\[([^\]|#]+)(?:#[^\]|]*)?(?:\|[^\]]*)?\]\]`)
	mdLinkPattern   = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	tagPattern      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// StructuralExtractor parses wikilinks, markdown links, and hashtags out of
// a chunk (spec §4.3, always on). Frontmatter key-value pairs are handled
// once per file by FrontmatterEdges.
type StructuralExtractor struct {
	resolver TitleResolver
}

// NewStructuralExtractor builds a structural extractor that resolves
// wikilink/markdown-link targets against the given title resolver.
func NewStructuralExtractor(resolver TitleResolver) *StructuralExtractor {
	return &StructuralExtractor{resolver: resolver}
}

// Extract implements Extractor.
func (e *StructuralExtractor) Extract(ctx context.Context, chunk *model.Chunk, file *model.File) (Result, error) {
	var res Result
	sectionID := model.SectionID(chunk.FilePath, chunk.HeadingPath)

	seenLinks := make(map[string]bool)
	for _, m := range wikilinkPattern.FindAllStringSubmatch(chunk.Text, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" || seenLinks[target] {
			continue
		}
		seenLinks[target] = true
		res.Edges = append(res.Edges, e.linkEdge(sectionID, target))
	}

	for _, m := range mdLinkPattern.FindAllStringSubmatch(chunk.Text, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" || isExternalLink(target) || seenLinks[target] {
			continue
		}
		seenLinks[target] = true
		res.Edges = append(res.Edges, e.linkEdge(sectionID, strings.TrimSuffix(target, ".md")))
	}

	seenTags := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(chunk.Text, -1) {
		raw := "#" + m[1]
		id := model.TagID(raw)
		if seenTags[id] {
			continue
		}
		seenTags[id] = true
		res.Tags = append(res.Tags, model.Tag{ID: id, Raw: raw})
		res.Edges = append(res.Edges, model.Edge{
			Kind: model.EdgeHasTag, FromKind: model.NodeSection, FromID: sectionID,
			ToKind: model.NodeTag, ToID: id,
		})
	}

	return res, nil
}

// linkEdge resolves a wikilink/markdown-link title against known files,
// falling back to a synthetic unresolved File node keyed by title.
func (e *StructuralExtractor) linkEdge(sectionID, target string) model.Edge {
	toID := target
	if e.resolver != nil {
		if path, ok := e.resolver.ResolveByTitle(target); ok {
			toID = path
		}
	}
	return model.Edge{
		Kind: model.EdgeLinksTo, FromKind: model.NodeSection, FromID: sectionID,
		ToKind: model.NodeFile, ToID: toID,
	}
}

func isExternalLink(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "mailto:")
}

// FrontmatterEdges builds HAS_FRONTMATTER edges for a file's parsed
// frontmatter key-value pairs, plus any comma- or list-shaped `tags` value
// turned into HAS_TAG edges. Frontmatter is attached to the file, not
// emitted as a chunk (spec §4.2), so this runs once per file rather than
// per chunk.
func FrontmatterEdges(filePath string, fm model.Frontmatter) Result {
	var res Result
	for k, v := range fm {
		res.Edges = append(res.Edges, model.Edge{
			Kind: model.EdgeHasFrontmatter, FromKind: model.NodeFile, FromID: filePath,
			Key: k, Value: v,
		})
		if strings.EqualFold(k, "tags") {
			for _, raw := range splitTagList(v) {
				id := model.TagID(raw)
				res.Tags = append(res.Tags, model.Tag{ID: id, Raw: raw})
				res.Edges = append(res.Edges, model.Edge{
					Kind: model.EdgeHasTag, FromKind: model.NodeFile, FromID: filePath,
					ToKind: model.NodeTag, ToID: id,
				})
			}
		}
	}
	return res
}

func splitTagList(v string) []string {
	v = strings.Trim(v, "[]")
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	var tags []string
	for _, p := range parts {
		p = strings.Trim(p, `"' `)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
