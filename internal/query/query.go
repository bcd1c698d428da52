// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns a research question into platform-specific search
// queries using the language model. Each platform carries a syntax guide
// describing its query dialect; the model generates the requested number
// of diverse queries in that dialect.
package query

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/llm"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// queryResponse is the JSON shape the model is asked to produce.
type queryResponse struct {
	Queries []string `json:"queries"`
}

// Formulator generates search queries via the language model.
type Formulator struct {
	client llm.Client
	log    *zap.Logger
}

// NewFormulator builds a Formulator on the given model client.
func NewFormulator(client llm.Client, log *zap.Logger) *Formulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Formulator{client: client, log: log.Named("query")}
}

// Formulate generates num queries for the named platform. On model or
// parse failure it returns an error so the caller can degrade the
// platform rather than the whole search.
func (f *Formulator) Formulate(ctx context.Context, userQuery string, num int, platform string) ([]string, error) {
	guide, ok := syntaxGuides[strings.ToLower(platform)]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}

	var prompt strings.Builder
	err := generateQueriesTmpl.Execute(&prompt, map[string]any{
		"Query":      userQuery,
		"Guidance":   guide,
		"NumQueries": num,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := f.client.Complete(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("formulating %s queries: %w", platform, err)
	}

	var resp queryResponse
	if err := llm.Decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("parsing %s queries: %w", platform, err)
	}

	queries := make([]string, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		q = strings.TrimSpace(q)
		if q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) > num {
		queries = queries[:num]
	}
	f.log.Debug("formulated queries",
		zap.String("platform", platform),
		zap.Int("count", len(queries)))
	return queries, nil
}

// syntaxGuides maps each platform to its query-dialect guidance embedded
// in the generation prompt.
var syntaxGuides = map[string]string{
	types.PlatformScopus:          scopusSearchGuide,
	types.PlatformOpenAlex:        openAlexSearchGuide,
	types.PlatformArxiv:           arxivSearchGuide,
	types.PlatformCORE:            coreSearchGuide,
	types.PlatformSemanticScholar: semanticScholarSearchGuide,
}

var generateQueriesTmpl = template.Must(template.New("generate_queries").Parse(`
You are an expert in academic literature search query formulation. Your task is to generate optimized search queries for academic databases to find research articles relevant to a user's research query.

User Research Query:
{{.Query}}

Search Platform Guidance:
{{.Guidance}}

Number of Queries to Generate: {{.NumQueries}}

Instructions:
1. Understand the User Research Query. Identify the core concepts, keywords, and nuances of the research topic.
2. Review the Search Platform Guidance. This guidance provides specific syntax, operators, and best practices for formulating effective queries on the target database platform (e.g., Scopus, OpenAlex, ArXiv, CORE, Semantic Scholar).
3. Generate {{.NumQueries}} distinct search queries. Each query should represent a unique approach to searching for relevant articles. Consider variations in:
    - Keywords: Use synonyms, related terms, and broader or narrower concepts.
    - Phrase variations: Explore different phrasing and combinations of keywords.
    - Boolean operators: Strategically use AND, OR, NOT to refine search focus.
    - Field codes (if applicable): Utilize field codes (e.g., TITLE, ABS, KEY) as per the platform guidance to target specific document sections.
4. Ensure each generated query is syntactically correct and optimized for the specified Search Platform, adhering to the Search Platform Guidance.
5. Aim for diversity in the generated queries to comprehensively cover the research topic from multiple angles.
6. Output the queries as a JSON list of strings. If any query string contains double quotes, escape them with backslashes (\").

Example JSON Output:
{
  "queries": [
    "query variation 1",
    "query variation 2",
    "query variation 3",
    ...
  ]
}

Generate {{.NumQueries}} high-quality, diverse search queries that are optimized for academic literature databases and tailored to the Search Platform Guidance provided. Focus on creating queries that are precise, comprehensive, and effective in retrieving relevant research articles for the User Research Query.
`))

const scopusSearchGuide = `
Syntax and Operators

Valid syntax for advanced search queries includes:

Field codes (e.g. TITLE, ABS, KEY, AUTH, AFFIL) to restrict searches to specific parts of documents
Boolean operators (AND, OR, AND NOT) to combine search terms
Proximity operators (W/n, PRE/n) to find words within a specified distance - W/n: Finds terms within "n" words of each other, regardless of order. Example: journal W/15 publishing finds articles where "journal" and "publishing" are within two words of each other. - PRE/n: Finds terms in the specified order and within "n" words of each other. Example: data PRE/50 analysis finds articles where "data" appears before "analysis" within three words. - To find terms in the same sentence, use 15. To find terms in the same paragraph, use 50 -
Quotation marks for loose/approximate phrase searches
Braces {} for exact phrase searches
Wildcards (*) to capture variations of search terms

Invalid syntax includes:

Mixing different proximity operators (e.g. W/n and PRE/n) in the same expression
Using wildcards or proximity operators with exact phrase searches
Placing AND NOT before other Boolean operators
Using wildcards on their own without any search terms

Ideal Search Structure

An ideal advanced search query should:

Use field codes to focus the search on the most relevant parts of documents
Combine related concepts using AND and OR
Exclude irrelevant terms with AND NOT at the end
Employ quotation marks and braces appropriately for phrase searching
Include wildcards to capture variations of key terms (while avoiding mixing them with other operators)
Follow the proper order of precedence for operators
Complex searches should be built up systematically, with parentheses to group related expressions as needed. The information from the provided documents on syntax rules and operators should be applied rigorously.

** Critical: all double quotes other than the outermost ones should be preceded by a backslash (\") to escape them in the JSON format. Failure to do so will result in an error when parsing the JSON string. **

Example Advanced Searches

{
  "queries": [
    "TITLE-ABS-KEY((\"precision agriculture\" OR \"precision farming\") AND (\"machine learning\" OR \"AI\") AND \"water\")",
    "TITLE-ABS-KEY((iot OR \"internet of things\") AND (irrigation OR watering) AND sensor*)",
    "TITLE-ABS-Key((\"precision farming\" OR \"precision agriculture\") AND (\"deep learning\" OR \"neural networks\") AND \"water\")",
    "TITLE-ABS-KEY((crop W/5 monitor*) AND \"remote sensing\" AND (irrigation OR water*))",
    "TITLE(\"precision irrigation\" OR \"variable rate irrigation\" AND \"machine learning\")"
  ]
}
`

const openAlexSearchGuide = `
Syntax and Operators
Valid syntax for advanced alex search queries includes:
Using quotation marks %22%22 for exact phrase matches
Adding a minus sign - before terms to exclude them
Employing the OR operator in all caps to find pages containing either term
Using the site%3A operator to limit results to a specific website
Applying the filetype%3A operator to find specific file formats like PDF, DOC, etc.
Adding the * wildcard as a placeholder for unknown words

Invalid syntax includes:
Putting a plus sign + before words (alex stopped supporting this)
Using other special characters like %3F, %24, %26, %23, etc. within search terms
Explicitly using the AND operator (alex's default behavior makes it redundant)

Ideal Search Structure
An effective alex search query should:
Start with the most important search terms
Use specific, descriptive keywords related to irrigation scheduling, management, and precision irrigation
Utilize exact phrases in %22quotes%22 for specific word combinations
Exclude irrelevant terms using the - minus sign
Connect related terms or synonyms with OR
Apply the * wildcard strategically for flexibility

Note:

By following these guidelines and using proper URL encoding, you can construct effective and accurate search queries for alex.

Searches should be concise yet precise, following the syntax rules carefully.

Example Searches
{
  "queries": [
    "https://api.openalex.org/works?search=%22precision+irrigation%22+%2B%22soil+moisture+sensors%22+%2B%22irrigation+scheduling%22&sort=relevance_score:desc&per-page=30",
    "https://api.openalex.org/works?search=%22machine+learning%22+%2B%22irrigation+management%22+%2B%22crop+water+demand+prediction%22&sort=relevance_score:desc&per-page=30",
    "https://api.openalex.org/works?search=%22IoT+sensors%22+%2B%22real-time%22+%2B%22soil+moisture+monitoring%22+%2B%22crop+water+stress%22&sort=relevance_score:desc&per-page=30",
    "https://api.openalex.org/works?search=%22remote+sensing%22+%2B%22vegetation+indices%22+%2B%22irrigation+scheduling%22&sort=relevance_score:desc&per-page=30",
    "https://api.openalex.org/works?search=%22wireless+sensor+networks%22+%2B%22precision+agriculture%22+%2B%22variable+rate+irrigation%22+%2B%22irrigation+automation%22&sort=relevance_score:desc&per-page=30"
  ]
}
`

const arxivSearchGuide = `
ArXiv uses natural language queries in the form of plain strings
Focus on purely natural language or minimal formatting.
ArXiv does not have a deeply complex advanced syntax like Scopus.
We simply want multiple variations or angles on the user's query
to capture different aspects of the topic.
`

const coreSearchGuide = `
CORE allows a query param like 'title:(...) AND abstract:(...)' etc.
Similar to advanced boolean expressions.
We want multiple angles to discover relevant papers.
Use synonyms, phrases, parentheses, and boolean operators
to generate diverse queries for CORE.
`

const semanticScholarSearchGuide = `
Semantic Scholar accepts natural language search queries.
Focus on creating comprehensive, information-rich queries
that capture the full context and intent of the research
question. Since Semantic Scholar uses advanced AI techniques
for search, rich and comprehensive queries work better than
multiple narrow ones.

Your queries should:
1. Include all key concepts from the original query
2. Add relevant synonyms or related terms
3. Specify important contextual details
4. Maintain focus on the core research question

Example natural language queries:
{
  "queries": [
    "The impact of climate change on agricultural productivity with a focus on drought resilience and adaptation strategies in developing countries",
    "Machine learning applications for precision agriculture focusing on crop yield prediction and disease detection using computer vision and sensor data",
    "Effectiveness of cognitive behavioral therapy compared to medication for treating anxiety disorders in adolescents based on longitudinal studies"
  ]
}
`
