package qagen

const questionPromptTemplate = `Based on the following text, generate %d questions.

Text:
%s

%s

IMPORTANT REQUIREMENTS:
- Questions should be natural and realistic
- DO NOT reference specific figures, charts, or page numbers
- Ask about concepts, relationships, and information
- Make questions generally applicable, not document-specific
- Avoid phrases like "according to the document" or "the text states"

Output format:
1. [Question 1]
2. [Question 2]
3. [Question 3]

Questions:`

const answerPromptTemplate = `Answer the following question based on the provided context.

Context:
%s

Question: %s

IMPORTANT REQUIREMENTS:
- Provide a clear, informative answer based on the context
- DO NOT reference specific figures, charts, pages, or sections
- DO NOT say "according to the document" or similar phrases
- Write the answer as if you're explaining the concept directly
- If the context doesn't contain enough information, say so briefly
- Keep the answer concise but complete (2-4 sentences typically)

Answer:`

var complexityGuidance = map[string]string{
	"simple":  "Generate simple, straightforward questions that can be answered directly from the text. Use simple language.",
	"medium":  "Generate questions that require understanding of the main concepts and relationships in the text.",
	"complex": "Generate analytical questions that require synthesis of multiple concepts and deeper understanding.",
}
