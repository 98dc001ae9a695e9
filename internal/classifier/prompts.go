package classifier

// Prompt templates for theme extraction and review classification. Both
// demand bare JSON so responses survive strict parsing.

const extractThemesPrompt = `You are analyzing app reviews for a fintech investment app. Analyze the following reviews and identify the top %d themes that users are discussing.

Reviews:
%s

Instructions:
1. Identify exactly %d themes based on what users are actually talking about
2. Themes should be specific to the app's features and user concerns (e.g., "Order Execution Issues", "Login Problems", "Portfolio Tracking", etc.)
3. Do NOT use generic themes like "App Experience" or "Easy to Use" unless they are truly the main themes
4. For each theme, provide:
   - Theme name (2-4 words, specific and actionable)
   - Brief description (1-2 sentences explaining what this theme covers)
   - Example keywords or phrases users mention

Return ONLY valid JSON in this exact format:
{
  "themes": [
    {
      "name": "Theme Name",
      "description": "Brief description of what this theme covers",
      "keywords": ["keyword1", "keyword2"]
    }
  ]
}

Do not include any markdown formatting, only JSON.`

const classifyReviewsPrompt = `You are tagging user reviews into exactly one of the following themes.

Allowed themes:
%s

For each review below, assign it to exactly ONE theme that best matches the main concern or topic discussed.

Reviews:
%s

Return ONLY valid JSON in this exact format:
{
  "classifications": [
    {
      "review_id": "review_id_here",
      "theme_name": "Exact theme name from the list above",
      "reason": "One sentence explaining why this theme was chosen (no PII)"
    }
  ]
}

Important:
- Each review must be assigned to exactly ONE theme
- Theme name must match exactly one from the allowed themes list
- If a review doesn't clearly fit any theme, choose the closest match
- Do not include any markdown formatting, only JSON.`
