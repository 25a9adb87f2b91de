package retrieval

// dedupe collapses the candidate set to one survivor per article:
// the highest-scoring unit in each article_id group, annotated with how many
// units matched so callers can report matched_sections.
func dedupe(cands []*candidate) []*candidate {
	bestByArticle := make(map[int]*candidate, len(cands))
	counts := make(map[int]int, len(cands))

	for _, c := range cands {
		counts[c.row.ArticleID]++
		best, ok := bestByArticle[c.row.ArticleID]
		if !ok || c.score > best.score {
			bestByArticle[c.row.ArticleID] = c
		}
	}

	out := make([]*candidate, 0, len(bestByArticle))
	for articleID, c := range bestByArticle {
		c.matchedSections = counts[articleID]
		out = append(out, c)
	}
	return out
}
