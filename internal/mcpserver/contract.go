package mcpserver

// BoardFormatContract describes the board document and cell value formats
// LLM consumers should follow when reading boards or writing items.
const BoardFormatContract = `# FlexiBoard Board Format Contract

A board is a table of items. Columns define the schema; each item stores its
cell values in ` + "`" + `data` + "`" + `, keyed by **column id** (not title).

## Board document

` + "```" + `json
{
  "id": "b-1",
  "workspace_id": "w-1",
  "name": "Launch plan",
  "columns": [{"id": "status", "title": "Status", "type": "status", "options": ["Not Started", "Working on it", "Stuck", "Done"]}],
  "groups": [{"id": "todo", "title": "To do"}],
  "items": [{"id": "i-1", "group_id": "todo", "data": {"name": "Write brief", "status": "Working on it"}}],
  "views": [{"id": "v-1", "name": "Main table", "type": "table"}],
  "automations": [],
  "version": 7
}
` + "```" + `

## Cell values by column type

| Type | Value |
|---|---|
| text, long-text, email, phone, url | string |
| number, currency, rating, progress | number (progress is 0-100) |
| date | "YYYY-MM-DD" |
| datetime | RFC 3339 timestamp |
| status, dropdown | one of the column's options |
| priority | "low", "medium", "high" or "urgent" |
| person, team, tags, multiselect | array of strings |
| checkbox | boolean |
| timeline | {"start": RFC 3339, "end": RFC 3339} |
| connect-boards | array of item ids on the linked board |
| file | managed by uploads, do not write |
| formula, lookup, mirror, auto-number, creation-log, last-updated | computed, do not write |

## Rules

1. **Use column ids.** Read the board (get_board) before writing so ids and
   status options are known.
2. **Required columns** must be present when creating an item.
3. **Status values** should match an option exactly; views and automations
   compare them as written.
4. **Unknown keys are stored but ignored** by views and automations.
5. **Writes run automations.** Changing a status may notify people, move the
   item or create items on other boards. Use list_automations to see the rules.

## Automations

` + "```" + `json
{
  "name": "Notify on done",
  "enabled": true,
  "trigger": {"type": "when-status-changes", "value": "Done"},
  "conditions": [{"column": "priority", "operator": "equals", "value": "high"}],
  "actions": [{"type": "send-notification", "recipients": ["u-2"], "message": "{name} is done"}]
}
` + "```" + `

Triggers: when-status-changes, when-column-changes, when-item-created,
when-item-moved, when-date-arrives, every-time-period.
Messages may reference {name} or any {Column Title}.
`
