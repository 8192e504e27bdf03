package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/peerchat/peerchat/chat"
	"github.com/peerchat/peerchat/conntrack"
	"github.com/peerchat/peerchat/styles"
	"github.com/peerchat/peerchat/transfer"
)

const (
	maxLines = 18
	barWidth = 20
)

// Render repaints the whole screen from an App snapshot. The terminal is
// in raw mode, so every line ends in \r\n.
func Render(app *chat.App) {
	var b strings.Builder

	b.WriteString("\x1b[2J\x1b[H")

	writeLine(&b, styles.TITLE.Render("peerchat")+" "+styles.SYSTEM.Render("("+app.Nickname+")"))
	writeLine(&b, "")

	lines := app.Lines
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	for _, line := range lines {
		writeLine(&b, renderLine(line))
	}
	writeLine(&b, "")

	if len(app.Peers) > 0 {
		writeLine(&b, styles.SYSTEM.Render("peers:"))
		ids := make([]string, 0, len(app.Peers))
		for id := range app.Peers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			p := app.Peers[id]
			writeLine(&b, "  "+app.PeerName(id)+" "+connTag(p.Conn))
		}
		writeLine(&b, "")
	}

	if app.Transfers.HasEntries() {
		writeLine(&b, styles.SYSTEM.Render("transfers:"))
		selected := app.Transfers.SelectedIndex()
		for i, rec := range app.Transfers.Records() {
			marker := "  "
			text := renderTransfer(rec)
			if app.Mode == chat.ModeTransfers && i == selected {
				marker = "> "
				text = styles.SELECTED.Render(text)
			}
			writeLine(&b, marker+text)
		}
		writeLine(&b, "")
	}

	prompt := "> "
	if app.Mode == chat.ModeTransfers {
		prompt = styles.SYSTEM.Render("[transfers] ")
	}
	b.WriteString(prompt + string(app.Input))

	fmt.Fprint(os.Stdout, b.String())
}

func writeLine(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\r\n")
}

func renderLine(line chat.Line) string {
	switch line.Kind {
	case chat.LineTicket:
		return styles.TICKET.Render(line.Text)
	case chat.LineChat:
		return styles.NICKNAME.Render(line.Nickname+":") + " " + line.Text
	default:
		return styles.SYSTEM.Render("* " + line.Text)
	}
}

func connTag(conn conntrack.ConnType) string {
	switch conn {
	case conntrack.Direct:
		return styles.DIRECT.Render("[direct]")
	case conntrack.Relay:
		return styles.RELAY.Render("[relay]")
	default:
		return styles.UNKNOWN.Render("[?]")
	}
}

func renderTransfer(rec *transfer.Record) string {
	size := humanize.Bytes(rec.Size)

	switch rec.State {
	case transfer.Downloading:
		return fmt.Sprintf("%s %s %s / %s", rec.Filename, progressBar(rec.Bytes, rec.Size), humanize.Bytes(rec.Bytes), size)
	case transfer.Complete:
		return fmt.Sprintf("%s %s %s -> %s", rec.Filename, styles.COMPLETE.Render("done"), size, rec.Path)
	case transfer.Failed:
		return fmt.Sprintf("%s %s (%s)", rec.Filename, styles.FAILED.Render("failed"), rec.Reason)
	case transfer.Sharing:
		return fmt.Sprintf("%s %s %s", rec.Filename, styles.SYSTEM.Render("sharing"), size)
	default:
		return fmt.Sprintf("%s %s from %s", rec.Filename, size, rec.SenderName)
	}
}

func progressBar(bytes, total uint64) string {
	if total == 0 {
		return "[" + strings.Repeat("#", barWidth) + "]"
	}

	filled := int(bytes * barWidth / total)
	if filled > barWidth {
		filled = barWidth
	}

	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}
