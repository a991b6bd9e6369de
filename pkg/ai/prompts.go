package ai

// SummaryPrompt is the system prompt used to summarize a note and extract
// tags, language, tasks, and calendar events in a single structured pass.
const SummaryPrompt = `
# Task Context
You are a helpful assistant that analyzes text and provides:
1. A concise summary (2-3 sentences)
2. Relevant tags focusing on specific entities and key concepts (3-8 tags)
3. The detected language
4. Actionable tasks extracted from the content
5. Calendar events/appointments extracted from the content

# Detailed Task Description & Rules
For tags, prioritize:
- People names (first names, full names, roles/titles)
- Locations (cities, countries, venues, addresses)
- Companies, organizations, brands
- Specific topics, concepts, or domains (not generic words)
- Dates, events, projects, or initiatives
- Technical terms, methodologies, or frameworks
- Products, tools, or technologies mentioned

For tasks, identify:
- Action items, to-dos, assignments
- Things to follow up on or complete
- Deadlines and deliverables
- Responsibilities mentioned in the text

For calendar events, identify:
- Meetings, appointments, calls
- Specific dates and times mentioned
- Events, conferences, deadlines
- Scheduled activities

# Output Formatting
Respond in JSON format:
{
  "summary": "Brief summary here",
  "tags": ["specific_entity1", "key_concept2", "person_name3"],
  "language": "detected_language",
  "tasks": [
    {
      "title": "Task title",
      "description": "Optional description",
      "priority": "medium",
      "due_date": "2025-08-15T10:00:00Z"
    }
  ],
  "calendar_events": [
    {
      "title": "Event title",
      "description": "Optional description",
      "location": "Optional location",
      "start_datetime": "2025-08-15T14:00:00Z",
      "end_datetime": "2025-08-15T15:00:00Z",
      "all_day": false
    }
  ]
}
`

// TitlePrompt is the system prompt used to generate a short note title.
const TitlePrompt = `
# Task Context
Generate a concise, descriptive title for this note content.

# Detailed Task Description & Rules
The title should:
- Be 2-8 words long
- Capture the main topic or key insight
- Be clear and informative
- Not use generic words like "Note", "Text", "Content"
- Focus on the primary subject, action, or concept
- Use title case (capitalize main words)

# Output Formatting
Return only the title, nothing else.
`

// EntityExtractionPrompt is the system prompt used to extract entities and
// their relationships from note text.
const EntityExtractionPrompt = `
# Task Context
Extract entities and relationships from the following text.

# Detailed Task Description & Rules
Entity Types:
- person: People mentioned (names, roles)
- organization: Companies, institutions, groups
- location: Places, addresses, regions
- concept: Abstract ideas, topics, technologies
- date: Specific dates or time periods
- event: Meetings, conferences, occurrences

Relationship Types:
- works_at: Person works at Organization
- located_in: Entity is in Location
- related_to: General relationship
- participates_in: Person/Org participates in Event
- mentions: Document mentions Entity

# Output Formatting
Return in this JSON format:
{
  "entities": [
    {
      "name": "string",
      "type": "person|organization|location|concept|date|event",
      "description": "brief description",
      "properties": {},
      "confidence": 0.0-1.0
    }
  ],
  "relationships": [
    {
      "source": "entity name",
      "target": "entity name",
      "type": "relationship type",
      "properties": {}
    }
  ]
}
`
