// internal/tracker/prompts.go
package tracker

// tableExtractionSystemPrompt asks the vision tier to read the request
// tracking table off a screenshot plus the page text.
const tableExtractionSystemPrompt = `You are reading the request tracking table of a NextRequest-style public records portal.

Page URL: %s
Page title: %s

Visible page text (truncated):
---
%s
---

Extract every request row you can see. Request identifiers look like "24-1093"
(a 2-4 digit year prefix, a dash, a sequence number). Ignore header rows,
filter controls and navigation. Preserve the on-screen order.

Respond ONLY with a JSON object of this exact shape:
{
  "requests": [
    {
      "id": "24-1093",
      "title": "Body camera footage, 4th St incident",
      "status": "Open",
      "department": "Police",
      "date_created": "2026-03-04",
      "row_index": 0
    }
  ]
}

Use empty strings for cells the table does not show. Do not invent rows.`

// clickInstructionSystemPrompt asks for the most reliable way to open one
// request's detail view from the table.
const clickInstructionSystemPrompt = `You are looking at the request list of a public records portal.
The goal is to open the detail page of request "%s".

Page HTML (truncated):
---
%s
---

Pick the most reliable way to click through to that request. Prefer a unique
CSS selector targeting the request's link. If no selector is trustworthy,
return the exact link text to click instead and leave "selector" empty.

Respond ONLY with a JSON object:
{
  "selector": "a[href='/requests/24-1093']",
  "text": "24-1093",
  "reason": "anchor href carries the request id"
}`

// detailAnalysisSystemPrompt summarizes one request's detail page.
const detailAnalysisSystemPrompt = `You are reading the detail page of public records request "%s".

Page URL: %s

Visible page text (truncated):
---
%s
---

Report the request's current state. Include the correspondence timeline
(who wrote what, newest last), any documents released, and what the
requester should do next (payments due, clarification asked for, records
ready for download). If nothing is pending, say so in the summary and
leave next_actions empty.

Respond ONLY with a JSON object:
{
  "id": "%s",
  "status": "Open",
  "summary": "Agency asked for a date range clarification on June 2.",
  "messages": [
    {"from": "Staff", "date": "2026-06-02", "body": "Please narrow the date range."}
  ],
  "documents": ["responsive_records.zip"],
  "next_actions": ["Reply with a narrowed date range"]
}`

// filterAnalysisSystemPrompt asks for checkbox selectors from the filter
// sidebar HTML so status filters can be applied reliably.
const filterAnalysisSystemPrompt = `You are analyzing the filter sidebar of a NextRequest-style request tracking page to find its checkboxes.

Filter HTML (truncated):
---
%s
---

Find the "Requester" checkbox in the "My requests" section and every
checkbox in the "Request status" section (typically "Open" and "Closed").
Target the input elements, not their labels, and prefer unique, simple CSS
selectors (id, name or data attributes). Report each checkbox's current
state from the HTML.

Respond ONLY with a JSON object:
{
  "checkboxes": [
    {"selector": "#filter-requester", "label": "Requester", "checked": false},
    {"selector": "input[name='status-open']", "label": "Open", "checked": true},
    {"selector": "input[name='status-closed']", "label": "Closed", "checked": false}
  ],
  "apply_hint": "filters apply on Ctrl+Enter"
}

Only include checkboxes that exist in the HTML provided.`

// composerAnalysisSystemPrompt locates the message composer on a detail
// page. The input may be a textarea or a contenteditable rich text editor.
const composerAnalysisSystemPrompt = `You are analyzing the message composer of a public records request detail page.

Composer HTML (truncated):
---
%s
---

Find where the requester types a message and the button that sends it. The
input may be a plain textarea, a contenteditable div, or an element with
role="textbox". Provide CSS selectors that uniquely target the real input
element and the send button. If no composer exists in the HTML, set
"found" to false.

Respond ONLY with a JSON object:
{
  "input_selector": "[contenteditable='true'][aria-label='Message']",
  "submit_selector": "button[data-test-id='send-message']",
  "found": true
}`

// replyDraftSystemPrompt turns a detail analysis into a reply the
// requester can send.
const replyDraftSystemPrompt = `You draft replies for a public records requester.

State of the request, as JSON:
---
%s
---

Write a short, polite reply that moves the request forward: answer any
clarification the agency asked for as far as the state allows, confirm
willingness to pay reasonable fees, and restate interest in the records.
Two or three sentences. No subject line, no signature, no placeholders
like [DATE]. Respond with the reply text only.`
