package report

const summarizeChunkPrompt = `You are summarizing user reviews for a fintech app.

Theme: %s

Reviews (already cleaned, no direct PII):
%s

Tasks:
1. Extract 3-5 key points about this theme in a neutral, factual tone.
2. Identify up to 3 short, vivid quotes that capture the sentiment.
   - Do NOT include names, usernames, emails, or IDs.
   - If a quote contains PII, rewrite it to keep meaning but remove the PII.
   - Quotes should be 1-2 lines each, impactful and representative.

3. Return JSON:
{
  "theme": "%s",
  "key_points": ["point 1", "point 2", "..."],
  "candidate_quotes": ["quote 1", "quote 2", "quote 3"]
}

Keep everything concise. Avoid marketing fluff. Focus on what users are actually saying.`

const weeklyPulsePrompt = `You are creating a weekly product pulse for internal stakeholders
(Product/Growth, Support, Leadership).

Input:
- Time window: %s to %s
- Candidate themes with key points and quotes:
%s

Constraints:
- Select the Top 3 themes that matter most based on frequency & impact.
- Produce:
  1) A short title for the pulse (max 10 words).
  2) A one-paragraph overview (max 60 words).
  3) A bullet list of the Top 3 themes:
     - For each, 1 sentence with sentiment + key insight.
  4) 3 short quotes (1-2 lines each), clearly marked with theme.
  5) 3 specific action ideas (bullets), each linked to a theme.

Style & limits:
- Total length: at most %d words.
- Use clear bullets and sub-bullets where needed.
- Executive-friendly, neutral tone. Do not overpraise.
- No names, emails, IDs, or any PII.

Output in this JSON structure:
{
  "title": "...",
  "overview": "...",
  "themes": [
    {"name": "...", "summary": "..."},
    ...
  ],
  "quotes": [
    {"text": "...", "theme": "..."},
    ...
  ],
  "actions": [
    {"text": "...", "theme": "..."},
    ...
  ]
}`

const compressReportPrompt = `Compress this note to at most %d words, preserving:
- 3 themes, 3 quotes, 3 actions.
- Bullet-based, scannable structure.
- No PII.

Current note:
%s

Return the compressed version in the same JSON structure.`

const emailBodyPrompt = `You are drafting an internal weekly email sharing the latest product pulse.

Audience:
- Product & Growth: want to see what to fix or double down on.
- Support: wants to know what to acknowledge and celebrate.
- Leadership: wants a quick pulse, key risks, and wins.

Input (weekly note JSON):
%s

Tasks:
- Write an email body only (no subject line).
- Structure:
  1) 2-3 line intro explaining the time window and the product/program (%s).
  2) Embed the weekly pulse note in a clean, scannable format:
     - Title
     - Overview
     - Bulleted Top 3 themes
     - Bulleted 3 quotes
     - Bulleted 3 action ideas
  3) End with a short closing line and invite replies.

Constraints:
- Professional, neutral tone with a hint of warmth.
- No names, emails, or IDs. If present in quotes, anonymize generically
  (e.g., "a learner", "one participant", "a user").
- Keep the whole email under %d words.
- Use plain text formatting (no HTML, no markdown).
- Use simple bullets (- or *) for lists.

Output plain text only (no HTML, no markdown code blocks).`

const compressEmailPrompt = `Compress this email body to under %d words while preserving:
- All key information (themes, quotes, actions)
- Professional tone
- Structure and readability

Email body:
%s

Return the compressed version as plain text.`
