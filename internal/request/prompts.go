// internal/request/prompts.go
package request

const optionGenerationSystemPrompt = `You are helping generate public records requests for government agencies.
The user wants records related to: "%s"

Generate %d different approaches for requesting records about this topic.
Each option should have:
1. A clear title
2. 3-5 specific bullet points of data to request
3. Brief context about what this seeks

Examples of good bullet points:
- All incident reports involving use of force between [dates]
- Officer names, badge numbers, and dates of incidents
- Disciplinary actions taken, if any
- Budget allocations for equipment purchases over $5,000
- Policy documents regarding traffic stop procedures

Make the requests:
- Specific but not overly narrow
- Focused on data that would realistically exist
- Professional and legally appropriate
- Avoid requesting personal information that wouldn't be public

Generate different angles such as: incident-based, policy/procedure,
training/personnel, budget/equipment.

Respond ONLY with a JSON object:
{
  "options": [
    {
      "title": "Clear title describing the request",
      "bullet_points": ["Specific data element 1", "Specific data element 2"],
      "context": "Brief explanation of what this request seeks to understand"
    }
  ],
  "recommendation": "Explanation of which option might work best"
}`
