// Package prompts holds the prompt templates used by the workflow nodes.
// Templates are kept separate from node logic so they can be reviewed and
// tuned without touching execution code.
package prompts

import (
	"fmt"
	"strings"
)

// Transcript excerpts are capped before interpolation so a long source
// recording cannot blow out the prompt.
const (
	TitleTranscriptLimit   = 2000
	ContentTranscriptLimit = 5000
)

// TitleSystem sets the persona for both title generation and selection.
const TitleSystem = `You are an expert blog title writer with years of experience in SEO and content marketing.

Your titles are:
- Attention-grabbing (make people WANT to click)
- SEO-friendly (include relevant keywords naturally)
- Clear and specific (reader knows what they'll learn)
- Appropriately formatted (use numbers, power words)

You understand different writing styles:
- Professional: Industry terms, authoritative tone
- Casual: Friendly, conversational, relatable
- Technical: Precise, detailed, jargon-appropriate
- Storytelling: Narrative hooks, curiosity-building`

const titleGeneration = `Generate 5 creative and engaging blog post titles for the following topic.

TOPIC: %s

%s

WRITING STYLE: %s

REQUIREMENTS:
1. Generate exactly 5 title options
2. Each title should be unique in approach
3. Use proven title formats (how-to, listicles, questions, etc.)
4. Keep titles under 60 characters for SEO
5. Include power words that trigger emotion

TITLE TYPES TO INCLUDE:
- One "How to..." title
- One numbered list title (e.g., "10 Ways to...")
- One question-based title
- One benefit-focused title
- One creative/unique title

OUTPUT FORMAT:
Return ONLY the 5 titles, one per line, numbered 1-5.
Do not include any explanation or additional text.

Example output:
1. How to Master Remote Work in 30 Days
2. 7 Secrets Top Remote Workers Never Share
3. Why Are Remote Workers 40%% More Productive?
4. The Ultimate Guide to Work-From-Home Success
5. Remote Work Revolution: Transform Your Career Today`

const titleSelection = `From the following title options, select the BEST one for SEO and engagement.

TITLES:
%s

TOPIC: %s
STYLE: %s

Consider:
1. SEO value (keywords, length, searchability)
2. Click-through potential (would YOU click this?)
3. Accuracy (does it promise something the content can deliver?)
4. Style match (does it fit the requested writing style?)

OUTPUT FORMAT:
Return ONLY the single best title, nothing else.`

// TitleGeneration renders the brainstorming prompt.
func TitleGeneration(topic, transcript, style string) string {
	section := "No transcript provided - generate titles based on topic alone."
	if strings.TrimSpace(transcript) != "" {
		section = fmt.Sprintf("SOURCE TRANSCRIPT:\n%s...", truncate(transcript, TitleTranscriptLimit))
	}
	return fmt.Sprintf(titleGeneration, topic, section, style)
}

// TitleSelection renders the selection prompt over numbered candidates.
func TitleSelection(titles []string, topic, style string) string {
	var b strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return fmt.Sprintf(titleSelection, strings.TrimRight(b.String(), "\n"), topic, style)
}

// ContentSystem sets the persona for blog content generation.
const ContentSystem = `You are a professional blog writer with expertise in creating engaging, informative content.

Your writing style is:
- Clear and easy to read
- Well-structured with logical flow
- Rich with examples and practical advice
- Properly formatted for online reading
- SEO-conscious without being spammy

You write in Markdown format with:
- Proper heading hierarchy (##, ###)
- Bullet points for lists
- Bold text for emphasis
- Short paragraphs (2-3 sentences max)`

const contentGeneration = `Write a comprehensive blog post with the following specifications:

TITLE: %s
TOPIC: %s
WRITING STYLE: %[3]s

%[4]s

REQUIREMENTS:
1. Length: 800-1200 words
2. Format: Markdown
3. Structure:
   - Engaging introduction (2-3 sentences with a hook)
   - Clear subheadings (use ## for main sections)
   - Practical examples or tips
   - Conclusion with a call-to-action

4. Style Guidelines based on "%[3]s":
   - Professional: Industry terms, data-backed claims, authoritative
   - Casual: Conversational, use "you", relatable examples
   - Technical: Precise terminology, code examples if relevant
   - Storytelling: Narrative arc, personal anecdotes, emotional hooks

5. SEO Best Practices:
   - Use the main keyword in first paragraph
   - Include 2-3 subheadings with related keywords
   - Write meta-description-worthy first sentences

IMPORTANT:
- Do NOT include the title as an H1 (just start with introduction)
- Do NOT include "Introduction" or "Conclusion" as headings
- Make content genuinely useful, not filler

OUTPUT: Return ONLY the blog content in Markdown format.`

const contentWithTranscript = `TRANSCRIPT TO REFERENCE:
The following is a transcript from a video/podcast. Use this as source material,
but DO NOT plagiarize. Synthesize the ideas in your own words.

---
%s
---

Key ideas to incorporate from the transcript:
- Main points discussed
- Any statistics or data mentioned
- Examples or stories shared`

const contentNoTranscript = `Note: No source transcript provided. Generate content based solely on the topic.
Research-backed, practical advice is expected.`

// ContentGeneration renders the body-writing prompt.
func ContentGeneration(title, topic, transcript, style string) string {
	section := contentNoTranscript
	if strings.TrimSpace(transcript) != "" {
		section = fmt.Sprintf(contentWithTranscript, truncate(transcript, ContentTranscriptLimit))
	}
	return fmt.Sprintf(contentGeneration, title, topic, style, section)
}

// TranslationSystem sets the persona for translation.
const TranslationSystem = `You are an expert translator and localization specialist.

Your translations are:
- Natural and fluent (sounds like a native wrote it)
- Culturally appropriate (adapts idioms, references)
- Accurate (preserves the original meaning)
- Consistent (maintains terminology throughout)

You preserve:
- Markdown formatting
- Original structure and flow
- The author's voice and tone
- Technical terms that shouldn't be translated`

const translation = `Translate the following blog content into %s.

ORIGINAL CONTENT:
%s

TRANSLATION GUIDELINES:
1. Maintain all Markdown formatting (##, **, etc.)
2. Keep the same paragraph structure
3. Adapt idioms to natural equivalents (don't translate literally)
4. Preserve technical terms, brand names, and URLs unchanged
5. Match the tone of the original (professional, casual, etc.)

IMPORTANT:
- Do NOT add any translator notes or explanations
- Do NOT change the meaning or add new information
- Do NOT skip any sections

OUTPUT: Return ONLY the translated content in Markdown format.`

// Translation renders the translation prompt.
func Translation(content, targetLanguage string) string {
	return fmt.Sprintf(translation, targetLanguage, content)
}

// truncate caps s at limit characters, never splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
