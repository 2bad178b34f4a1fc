package crawler

// Prompts for the three LLM roles in the crawl: scoring links on a page,
// validating whether a page is a records-request portal, and deciding what
// each agent does next.

const linkExtractionSystemPrompt = `You are helping locate the public records request portal for a government agency.
You will receive the text content of a web page. Identify hyperlinks that could lead toward a page where a member of the public can submit a records request (FOIA request, public records request, open records request).

Respond ONLY with a JSON array. Each element must have:
- "url": the absolute link URL
- "text": the link text as shown on the page
- "depth_value": a score from 0.0 to 1.0 for how likely this link leads to the request portal (a direct "Submit a Request" link scores near 1.0; a generic department page scores low)
- "reason": one short sentence for the score

Prefer links mentioning records, FOIA, transparency, open government, or request submission. Exclude mailto:, tel:, social media, and file downloads. Return at most %d links, highest depth_value first. Return [] if nothing qualifies.`

const pageValidationSystemPrompt = `You are evaluating whether a web page is a public records request portal: a page where a member of the public can submit, or sign in to submit, a records request to a government agency.

You will receive the text content of the page. Respond ONLY with a JSON object:
{
  "is_target": true or false,
  "page_type": one of "portal_home", "login_form", "request_form", "records_info", "other",
  "confidence": a score from 0.0 to 1.0,
  "reason": one short sentence
}

A portal home page with a visible "Make Request" or "Submit Request" capability is a strong match. An informational records page without submission capability is not a match. Pages hosted on request-management platforms (NextRequest, GovQA, JustFOIA) are strong matches.`

const crawlDecisionSystemPrompt = `You are coordinating several crawler agents searching a government website for its public records request portal. You will receive each agent's state: its current URL, depth, the validation verdict for its current page, and its candidate outbound links.

Decide what each agent should do next. Respond ONLY with a JSON object:
{
  "actions": {"<agent_id>": "terminate" | "explore_deeper" | "explore_new", ...},
  "winner_agent_id": <id of the agent whose page is the portal, or -1>,
  "reason": "one short sentence"
}

Rules:
- "terminate" with a winner_agent_id when an agent's page is confidently the portal.
- "explore_deeper" when an agent's current page has a promising outbound link.
- "explore_new" when an agent's path looks like a dead end and it should restart from a different candidate.
- Agents at maximum depth cannot go deeper; give them "explore_new".`
