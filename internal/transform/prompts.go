package transform

const personaPromptTemplate = `Transform the following query to match the style and tone of this user persona:

PERSONA: %s
Description: %s
Style: %s

ORIGINAL QUERY:
%s

REQUIREMENTS:
- Maintain the core meaning and intent of the original query
- Adapt the language, tone, and phrasing to match the persona
- Keep the query concise (1-3 sentences)
- Make it sound natural for this type of user
- Do NOT add extra questions or change the fundamental ask

EXAMPLES:

Original: "How should I allocate my portfolio?"

P1 (First-time): "I'm new to investing and wondering how I should split up my money across different investments?"

P2 (Professional): "What's the recommended asset allocation for my portfolio?"

P3 (Technical): "Can you provide the optimal allocation percentages by asset class for portfolio optimization?"

P4 (Anxious): "I'm worried about losing money... how should I carefully distribute my investments to minimize risk?"

P5 (Directive): "Show me the allocation breakdown now."

YOUR TRANSFORMED QUERY (for %s):`

const simplifyPromptTemplate = `Simplify this query to make it more beginner-friendly:

ORIGINAL QUERY:
%s

REQUIREMENTS:
- Use everyday, non-technical language
- Break complex ideas into simpler terms
- Keep it short and direct (1-2 sentences)
- Maintain the core question/intent
- Make it accessible to someone new to the topic

EXAMPLES:

Original: "What's the optimal Sharpe ratio for my risk-adjusted portfolio?"
Simplified: "How can I get good returns without taking too much risk?"

Original: "Analyze the correlation between my equity exposure and volatility."
Simplified: "Are my stocks making my portfolio too risky?"

YOUR SIMPLIFIED QUERY:`

const complicatePromptTemplate = `Make this query more sophisticated and detailed:

ORIGINAL QUERY:
%s

REQUIREMENTS:
- Add analytical depth and nuance
- Include multiple aspects or considerations
- Use precise technical terminology where appropriate
- Make it multi-faceted but still coherent (2-3 sentences)
- Show advanced understanding of the topic

EXAMPLES:

Original: "How should I diversify my portfolio?"
Complex: "What diversification strategy would optimize my risk-adjusted returns across multiple asset classes while considering my time horizon, tax implications, and current market correlations?"

Original: "Is my portfolio too risky?"
Complex: "Based on historical volatility metrics, Value at Risk calculations, and stress testing against market downturns, how does my current portfolio risk profile compare to optimal risk levels for my investment horizon and objectives?"

YOUR COMPLEX QUERY:`
