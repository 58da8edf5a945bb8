package oracle

// The prompts below all demand a single JSON object back, matching the wire
// structs in openai.go. Keeping them as plain templates makes the request
// payloads easy to audit in logs.

const evaluateSystemPrompt = `You are a senior code reviewer. You assess a
set of commits against stated requirements and report how well the change
holds up.

Respond with a single JSON object of the shape:
{
  "score": <number between 0 and 1, overall quality of the change>,
  "issues": [
    {
      "claim": <the finding>,
      "grounds": <evidence in the diff>,
      "warrant": <why the evidence supports the finding>,
      "backing": <general principle behind the warrant>,
      "qualifier": <how strongly the finding holds>
    }
  ],
  "summary": <one paragraph describing the change and its quality>,
  "issueSummary": <one paragraph condensing the findings>
}`

const evaluateUserPrompt = `Requirements:
%s

Diffstat:
%s

Commit messages:
%s

Diff:
%s`

const expandSystemPrompt = `You are a code reviewer reasoning step by step
about a change. Given the current line of reasoning, propose the most
promising next reasoning steps to pursue.

Respond with a single JSON object of the shape:
{
  "reasoning": <why these steps are worth pursuing>,
  "steps": [<next reasoning step as text>, ...]
}

Propose at most five steps. Each step must be a concrete, self-contained
reasoning state, not a question.`

const expandUserPrompt = `Current reasoning state:
%s`

const scoreSystemPrompt = `You are a code reviewer judging a line of
reasoning about a change. Given the original assessment and a candidate
continuation, score how much the continuation improves the review.

Respond with a single JSON object of the shape:
{
  "score": <number between 0 and 1>,
  "explanation": <why the continuation earned this score>
}`

const scoreUserPrompt = `Original assessment:
%s

Candidate continuation:
%s`
