package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/xiaot623/livechat/internal/domain"
)

// visible reports whether a viewer with the given role sees msg. Only agents
// see internal notes.
func visible(msg domain.Message, viewer domain.Role) bool {
	return !msg.Internal || viewer == domain.RoleAgent
}

// chatLabel is the list entry for a chat.
func chatLabel(s domain.ChatSummary) string {
	return fmt.Sprintf("%s - %s", s.State, s.Subject)
}

func renderChatList(w io.Writer, chats []domain.ChatSummary) error {
	if len(chats) == 0 {
		fmt.Fprintln(w, color.Gray.Sprint("no chats"))
		return nil
	}

	settings := tw.Settings{
		Separators: tw.SeparatorsNone,
		Lines:      tw.LinesNone,
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{Borders: tw.BorderNone, Settings: settings})),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header("ID", "Chat")

	for _, s := range chats {
		if err := table.Append([]string{s.ID, chatLabel(s)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderMessage(w io.Writer, msg domain.Message, self string) {
	ts := msg.Timestamp.Local().Format("15:04:05")

	name := msg.Nickname
	switch {
	case msg.SenderID == self:
		name = color.Green.Sprint(name)
	case msg.Role == domain.RoleAgent:
		name = color.Cyan.Sprint(name)
	default:
		name = color.Yellow.Sprint(name)
	}

	text := msg.Text
	switch {
	case msg.ContentType == domain.ContentTypeSystem || msg.ContentType == domain.ContentTypeNotice:
		text = color.Gray.Sprint(text)
	case msg.Internal:
		text = color.New(color.FgMagenta, color.OpItalic).Render(text)
	}

	fmt.Fprintf(w, "%s %s: %s\n", color.Gray.Sprint(ts), name, text)
}

func renderTyping(w io.Writer, chat domain.Chat, self string) {
	var names []string
	for _, st := range chat.Typing {
		if !st.IsTyping || st.ParticipantID == self {
			continue
		}
		if p, ok := chat.Participant(st.ParticipantID); ok {
			names = append(names, p.Nickname)
		}
	}
	if len(names) == 0 {
		return
	}
	fmt.Fprintln(w, color.Gray.Sprintf("%s typing...", strings.Join(names, ", ")))
}

func renderEnded(w io.Writer) {
	fmt.Fprintln(w, color.New(color.BgBlack, color.FgRed).Render("  ====== chat ended ======"))
}

func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, color.Red.Sprintf("error: %v", err))
}
