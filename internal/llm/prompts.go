package llm

// Prompt templates. Each one demands bare JSON; the sanitizer still
// repairs fenced or chatty responses.

const sentimentPromptTemplate = `Rate the market sentiment of this crypto news article.
Respond with only JSON: {"sentiment": <number from -1.0 (very bearish) to 1.0 (very bullish)>}

Title: %s
Body: %s`

const relevancePromptTemplate = `Rate how relevant this article is to crypto market participants.
Respond with only JSON: {"relevance": <number from 0.0 (noise) to 1.0 (must-read)>}

Title: %s
Body: %s`

const themesPromptTemplate = `List up to 5 short themes for this crypto news article,
ordered by importance. Themes are 1-3 word phrases like "etf flows" or "defi exploit".
Respond with only JSON: {"themes": ["...", "..."]}

Title: %s
Body: %s`

const entityBatchPromptTemplate = `Extract the named entities from each crypto news article below.
For each article return its index and entities. Entity types: cryptocurrency, blockchain,
protocol, company, organization, person, exchange, regulator. Mark an entity primary when
the article is substantially about it.

Respond with only JSON:
{"articles": [{"index": 0, "entities": [{"type": "...", "name": "...", "ticker": "", "confidence": 0.9, "primary": true}]}]}

Articles:
%s`

const narrativePromptTemplate = `Analyze this crypto news article as one event in an ongoing story.

Identify:
- nucleus_entity: the single entity the story revolves around
- actors: entities playing an active role
- actor_salience: map of actor name to importance from 1 (peripheral) to 5 (central)
- actions: what happened, as short verb phrases
- tensions: conflicts, disputes or open questions driving the story
- implications: one sentence on why it matters
- summary: one paragraph summarizing the story so far

Respond with only JSON:
{"nucleus_entity": "...", "actors": ["..."], "actor_salience": {"...": 5}, "actions": ["..."], "tensions": ["..."], "implications": "...", "summary": "..."}

Title: %s
Body: %s`

const clusterSummaryPromptTemplate = `These crypto news articles cover one developing story.
Write a title (at most 60 characters) and a 2-3 sentence summary of the story.
Respond with only JSON: {"title": "...", "summary": "..."}

Articles:
%s`
