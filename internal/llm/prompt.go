package llm

import (
	"fmt"
	"strings"

	"github.com/spherical/newspaper-digest/internal/domain"
)

const systemPrompt = `You are an expert at analyzing newspaper PDFs for UPSC Civil Services Exam preparation. Extract ALL articles from the page that are relevant to UPSC syllabus. Be thorough and detailed.`

// SystemPrompt returns the fixed instruction sent with every page.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the per-page instruction, embedding the closed GS
// taxonomy so syllabus topics come back in canonical spelling.
func UserPrompt(page int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze page %d of a newspaper and extract ALL UPSC-relevant articles.\n\n", page)
	b.WriteString(`For each article, identify:
- Which GS papers it's relevant to (GS1, GS2, GS3, or GS4)
- Specific syllabus topics from the UPSC syllabus
- Key facts, data points, and analysis
- Connection to current affairs and UPSC preparation

GS PAPER COVERAGE:
`)
	for _, p := range domain.GSPapers {
		fmt.Fprintf(&b, "- %s: %s\n", p, domain.GSPaperScope[p])
	}

	b.WriteString("\nSYLLABUS TOPICS (use these exact names in gs_syllabus_topics where they apply):\n")
	for _, p := range domain.GSPapers {
		fmt.Fprintf(&b, "- %s: %s\n", p, strings.Join(domain.GSTopics[p], "; "))
	}

	b.WriteString("\nExtract comprehensive information for each article including title, full content/summary, ")
	b.WriteString("GS papers, specific topics, keywords, one-liner, key points for answer writing, prelims facts, ")
	b.WriteString("static topics for revision, and importance rating. ")
	fmt.Fprintf(&b, "Return the result by calling %s. If the page has no relevant articles, call it with an empty articles list.", ExtractArticlesTool)

	return b.String()
}
