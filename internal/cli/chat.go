package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/kura/internal/models"
)

// Asker answers a question from retrieved context.
type Asker interface {
	Ask(ctx context.Context, question string, limit int) (*models.Answer, error)
}

type chatStyles struct {
	title  lipgloss.Style
	prompt lipgloss.Style
	muted  lipgloss.Style
	answer lipgloss.Style
	err    lipgloss.Style
	bold   lipgloss.Style
}

func newChatStyles(out io.Writer) chatStyles {
	r := lipgloss.NewRenderer(out)
	return chatStyles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		prompt: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		answer: r.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
		err:    r.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		bold:   r.NewStyle().Bold(true),
	}
}

// Chat reads questions line by line from in and writes answers to out until
// the user types quit or exit, in is exhausted, or ctx is cancelled. Errors
// from asker are printed and the loop continues.
func Chat(ctx context.Context, in io.Reader, out io.Writer, asker Asker, limit int, verbose bool) error {
	st := newChatStyles(out)
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "%s - Conversational RAG\n", st.title.Render("kura"))
	fmt.Fprintln(out, "Type your questions or 'quit' to exit")
	fmt.Fprintf(out, "Retrieving %d similar fragments per query\n\n", models.ClampLimit(limit))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, st.prompt.Render("❯")+" ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "quit"), strings.EqualFold(query, "exit"):
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case strings.EqualFold(query, "help"):
			writeChatHelp(out, st)
			continue
		}

		fmt.Fprintln(out, st.muted.Render("Searching knowledge base..."))
		answer, err := asker.Ask(ctx, query, limit)
		if err != nil {
			fmt.Fprintln(out, st.err.Render("Error: "+err.Error()))
			if verbose {
				fmt.Fprintf(out, "   Debug: %+v\n", err)
			}
			continue
		}
		if len(answer.Sources) > 0 {
			fmt.Fprintln(out, st.muted.Render(fmt.Sprintf("Found %d relevant fragments", len(answer.Sources))))
		} else {
			fmt.Fprintln(out, st.muted.Render("No relevant documents found for your query"))
		}
		fmt.Fprintf(out, "\n%s\n\n", st.answer.Render(answer.Answer))
	}
}

func writeChatHelp(out io.Writer, st chatStyles) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, st.bold.Render("Available commands:"))
	fmt.Fprintln(out, "  help  - Show this help message")
	fmt.Fprintln(out, "  quit  - Exit the program")
	fmt.Fprintln(out, "  Any other text will be treated as a query")
	fmt.Fprintln(out)
}
