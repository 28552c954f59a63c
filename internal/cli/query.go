package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/llm"
	"github.com/dshills/dirrag/internal/rag"
	"github.com/dshills/dirrag/internal/vectorstore"
)

func newQueryCommand(a *app) *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Ask questions about the indexed documents",
		Long: `Query starts an interactive session. Each question is embedded, the most
similar chunks are retrieved from the index and handed to the chat model
as context. Type 'exit' or 'quit' to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if err := errors.Join(cfg.Validate(), cfg.ValidateChat()); err != nil {
				return err
			}

			backend, err := vectorstore.NewBackend(cfg.Store.Backend)
			if err != nil {
				return err
			}
			if !backend.Exists(cfg.VectorDBPath) {
				return fmt.Errorf("no index found at %s; run 'dirrag embed' first", cfg.VectorDBPath)
			}

			chat, err := llm.New(cfg.LLMConfig())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := a.openPipeline(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			session := rag.NewSession(p.searcher, chat, cfg.TopK, a.logger)
			return runQueryLoop(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout(), showSources)
		},
	}

	f := cmd.Flags()
	f.Int("k", 10, "number of chunks to retrieve per question")
	f.String("chat-provider", "", "chat provider: openai or ollama")
	f.String("chat-model", "", "chat model name")
	f.BoolVar(&showSources, "sources", true, "print the retrieved sources before each answer")
	return cmd
}

// runQueryLoop reads questions line by line until exit, quit or EOF.
func runQueryLoop(ctx context.Context, session *rag.Session, in io.Reader, out io.Writer, showSources bool) error {
	fmt.Fprintln(out, titleStyle.Render("Local RAG Chat Session"))
	fmt.Fprintln(out, "Type your questions below.")
	fmt.Fprintln(out, dimStyle.Render("Type 'exit' or 'quit' to end the session."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n"+promptStyle.Render("Prompt: "))
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if rag.IsExit(question) {
			fmt.Fprintln(out, "Exiting chat session.")
			return nil
		}
		if question == "" {
			continue
		}

		answer, err := session.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}

		if showSources {
			for _, src := range answer.Sources {
				fmt.Fprint(out, sourceStyle.Render(src.String()))
			}
		}
		fmt.Fprintf(out, "\nResponse: %s\n", answerStyle.Render(answer.Text))
	}
	return scanner.Err()
}
