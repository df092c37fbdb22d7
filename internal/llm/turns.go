package llm

import "strings"

// alternate prepares turns for providers that only know user and model roles
// and expect them to alternate starting with the user. System notes become
// user text, adjacent turns with the same role are merged, and a leading model
// turn gets an empty-handed user turn in front of it.
func alternate(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns)+1)
	for _, t := range turns {
		role := t.Role
		if role == RoleSystem {
			role = RoleUser
		}
		if strings.TrimSpace(t.Text) == "" && len(t.Attachments) == 0 {
			continue
		}
		if len(out) == 0 && role == RoleModel {
			out = append(out, Turn{Role: RoleUser, Text: "Olá."})
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			prev := &out[n-1]
			if t.Text != "" {
				if prev.Text != "" {
					prev.Text += "\n\n"
				}
				prev.Text += t.Text
			}
			prev.Attachments = append(prev.Attachments, t.Attachments...)
			continue
		}
		out = append(out, Turn{
			Role:        role,
			Text:        t.Text,
			Attachments: append([]Attachment(nil), t.Attachments...),
		})
	}
	return out
}

func hasAttachments(turns []Turn) bool {
	for _, t := range turns {
		if len(t.Attachments) > 0 {
			return true
		}
	}
	return false
}
