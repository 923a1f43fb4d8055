package core

const decisionPromptTemplate = `You are an AI assistant deciding the next step in answering a user query.

User Query: %s

Current Iteration: %d (max: %d)

Available Tools:
%s

Previous Tool Results:
%s

Your task: Decide whether to:
1. CALL - Call one or more tools to get more information
2. ASK - Ask the user for clarification (if query is ambiguous)
3. ANSWER - Provide the final answer (if you have enough information)

DECISION RULES:
- At iteration 0 with no tool results, you should almost always CALL a tool to gather information.
- When search_knowledge_base is available, use it to retrieve relevant information from documents.
- Prefer grounded tool results over general knowledge; these trajectories demonstrate tool usage.
- Only ANSWER without tools when the query is outside the domain of every available tool, or when previous tool results already give sufficient context.
- ASK only when the query needs caller-specific information you do not have (an account, a client id, a personal detail).
- On the last iteration (%d) you must ANSWER, even if the answer is incomplete.

EXAMPLES:

Query: "How do neural networks work?"
Available: search_knowledge_base
Decision: CALL search_knowledge_base
Reasoning: Even though I know about neural networks, I should search the documents to give an answer grounded in the available information.

Query: "What is my account balance?"
Available: search_knowledge_base, get_account_info
Decision: ASK
Reasoning: The query needs client-specific information I don't have. I need to know which account or client id to look up.

Respond in exactly this format:

DECISION: [CALL/ASK/ANSWER]

REASONING: [Explain your decision in 2-3 sentences. Think step by step about what information you have and what you still need.]

[If CALL]
TOOLS: [comma-separated list of tool names to call]

[If ASK]
CLARIFICATION: [The specific clarification you need from the user]

[If ANSWER]
ANSWER: [Your complete answer to the user's query based on the context]

Your response:`
