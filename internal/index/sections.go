package index

import "github.com/dotmd/dotmd/internal/model"

// buildSectionTree derives every ancestor Section implied by a file's
// chunks' heading paths, plus the HAS_SECTION/PARENT_OF edges connecting
// them to the file and to each other (spec §3: "a Section's heading_path
// determines its parent via prefix relation"). Files with no headings at
// all (every chunk's HeadingPath is empty) produce no sections.
func buildSectionTree(filePath string, chunks []*model.Chunk) ([]*model.Section, []model.Edge) {
	seen := make(map[string]bool)
	var sections []*model.Section
	var edges []model.Edge

	for _, c := range chunks {
		for i := range c.HeadingPath {
			path := c.HeadingPath[:i+1]
			id := model.SectionID(filePath, path)
			if seen[id] {
				continue
			}
			seen[id] = true

			sec := &model.Section{
				ID:       id,
				FilePath: filePath,
				Level:    i + 1,
				Heading:  path[len(path)-1],
			}
			if i == 0 {
				edges = append(edges, model.Edge{
					Kind: model.EdgeHasSection, FromKind: model.NodeFile, FromID: filePath,
					ToKind: model.NodeSection, ToID: id,
				})
			} else {
				parentID := model.SectionID(filePath, c.HeadingPath[:i])
				sec.ParentID = parentID
				edges = append(edges, model.Edge{
					Kind: model.EdgeParentOf, FromKind: model.NodeSection, FromID: parentID,
					ToKind: model.NodeSection, ToID: id,
				})
			}
			sections = append(sections, sec)
		}
	}

	return sections, edges
}

// sectionChunkMap groups chunk IDs by the section ID of their full heading
// path, so the Indexer can call GraphStore.LinkSectionChunks once per
// section rather than once per chunk.
func sectionChunkMap(filePath string, chunks []*model.Chunk) map[string][]string {
	out := make(map[string][]string)
	for _, c := range chunks {
		id := model.SectionID(filePath, c.HeadingPath)
		out[id] = append(out[id], c.ID)
	}
	return out
}
