package extract

import (
	"fmt"
	"strings"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/oracle"
)

const systemPrompt = `You are a memory extraction system for a companion AI.

Your task is to identify information worth remembering long-term to personalize future conversations.

WHAT TO EXTRACT:
1. Preferences - stable likes/dislikes/tendencies that shape how the user wants to interact
2. Emotional Patterns - recurring emotional responses or causal relationships (X leads to Y)
3. Long-term Facts - biographical details, life circumstances, or stable truths about the user

WHAT NOT TO EXTRACT:
- Transient emotions ("I'm sad today") unless they're part of a pattern
- Temporary situations that will quickly become outdated
- Information already implicit in the conversation format itself
- Vague or ambiguous statements without clear meaning

CONFIDENCE SCORING:
- 0.9-1.0: Explicit, direct statement ("I prefer X", "I am Y")
- 0.7-0.8: Strongly implied, clear from context
- 0.5-0.6: Inferred from behavior or indirect statement
- Below 0.5: Uncertain, ambiguous, or speculative

Output ONLY valid JSON. No explanations or commentary.`

const schemaDescription = `Return a JSON object with this exact structure:

{
  "preferences": [
    {
      "key": "descriptive_key_name",
      "value": "normalized statement of the memory",
      "confidence": 0.0,
      "evidence": {
        "quote": "exact quote from conversation",
        "turns": [turn_number]
      }
    }
  ],
  "emotional_patterns": [ ...same record shape... ],
  "long_term_facts": [ ...same record shape... ]
}

Every record needs key, value and confidence. Use empty arrays for categories with nothing to extract.`

// buildRequest formats a chunk into a deterministic oracle request. The
// chunk is not mutated.
func buildRequest(chunk model.Chunk) oracle.Request {
	var b strings.Builder
	for _, t := range chunk.Turns {
		fmt.Fprintf(&b, "Turn %d (%s): %s\n", t.Index, t.Speaker, t.Text)
	}

	user := fmt.Sprintf(`Conversation chunk (chunk_id=%d):

%s
TASK: Extract memory candidates from the conversation above.

For each candidate, ask:
- Is this stable information that will remain relevant in future conversations?
- Is this explicitly stated or clearly implied?
- Can I extract this without inventing details?
- What exact quote supports this, and from which turn(s)?

Classify each memory into preferences, emotional_patterns, or long_term_facts,
give it a short descriptive key (e.g. "exercise_preference", "sleep_anxiety_pattern"),
a normalized value, and a confidence score.

%s

Return ONLY the JSON output, no other text.`, chunk.ID, b.String(), schemaDescription)

	return oracle.Request{System: systemPrompt, User: user}
}
