package cli

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tgolabs/chatkit/internal/domain"
	"github.com/tgolabs/chatkit/internal/upload"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the support channel",
		Args:  cobra.NoArgs,
		RunE:  runInteractiveChat,
	}

	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatUploadCmd())
	cmd.AddCommand(newChatHistoryCmd())

	return cmd
}

func newChatSendCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.engine.Init(ctx); err != nil {
				return err
			}
			before := len(a.engine.Messages())
			if err := a.engine.SendText(ctx, message); err != nil {
				return err
			}

			printReply(ctx, a, before, wait)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 90*time.Second, "how long to wait for the reply")
	return cmd
}

func newChatUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file into the conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.engine.Init(ctx); err != nil {
				return err
			}

			name := filepath.Base(args[0])
			a.engine.UploadFiles(upload.File{
				Name:    name,
				Mime:    mimeByExt(name),
				Content: content,
			})

			// Watch the placeholder until it settles.
			msgs := a.engine.Messages()
			id := msgs[len(msgs)-1].ID
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					a.engine.CancelUpload(id)
					return ctx.Err()
				case <-ticker.C:
				}
				m, ok := find(a.engine.Messages(), id)
				if !ok {
					return fmt.Errorf("upload entry disappeared")
				}
				switch {
				case m.Status == domain.StatusUploading:
					fmt.Printf("\ruploading %s: %d%%", name, m.UploadProgress)
				case m.Status == domain.StatusSending:
					fmt.Printf("\ruploading %s: delivering", name)
				case m.UploadError != "":
					fmt.Printf("\rupload failed: %s\n", m.UploadError)
					return nil
				default:
					fmt.Printf("\ruploaded %s\n", name)
					return nil
				}
			}
		},
	}
}

func newChatHistoryCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.engine.Init(ctx); err != nil {
				return err
			}
			for i := 1; i < pages && a.engine.HasMoreHistory(); i++ {
				if err := a.engine.LoadMoreHistory(ctx); err != nil {
					return err
				}
			}

			for _, m := range a.engine.Messages() {
				fmt.Println(renderMessage(a, m))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "number of history pages to load")
	return cmd
}

func runInteractiveChat(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.engine.Init(ctx); err != nil {
		return err
	}
	for _, m := range a.engine.Messages() {
		fmt.Println(renderMessage(a, m))
	}
	fmt.Println("-- connected; type a message, /cancel to stop a reply, /quit to exit --")

	// Background render loop: new messages and stream updates print as they
	// land in the engine.
	go renderLoop(ctx, a)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return nil
		case line == "/cancel":
			a.engine.CancelStreaming(ctx, "user_cancel")
		case line == "":
		default:
			if err := a.engine.SendText(ctx, line); err != nil {
				fmt.Printf("!! send failed: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// renderLoop prints messages as the engine ingests them. Streamed replies
// reprint on growth so the terminal shows text arriving.
func renderLoop(ctx context.Context, a *app) {
	seen := map[string]int{} // message id -> printed length
	for _, m := range a.engine.Messages() {
		seen[m.ID] = len(m.Payload.Content)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, m := range a.engine.Messages() {
			if m.Role != domain.RoleAgent {
				seen[m.ID] = len(m.Payload.Content)
				continue
			}
			length := len(m.Payload.Content) + len(m.StreamData)
			if prev, ok := seen[m.ID]; !ok || length > prev {
				fmt.Println(renderMessage(a, m))
				seen[m.ID] = length
			}
		}
		a.engine.ClearUnread()
	}
}

// printReply waits for the agent's answer to settle and prints it.
func printReply(ctx context.Context, a *app, before int, wait time.Duration) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			fmt.Println("-- no reply --")
			return
		}
		if a.engine.Streaming() {
			continue
		}
		msgs := a.engine.Messages()
		for _, m := range msgs[min(before, len(msgs)):] {
			if m.Role == domain.RoleAgent && m.StreamData == "" {
				fmt.Println(renderMessage(a, m))
				return
			}
		}
	}
}

// renderMessage formats one message for the terminal.
func renderMessage(a *app, m domain.ChatMessage) string {
	who := "you"
	if m.Role == domain.RoleAgent {
		who = "agent"
		if info, ok := a.engine.StaffInfo(m.FromUID); ok {
			who = info.Name
		}
	}

	body := m.Payload.Content
	switch {
	case m.StreamData != "":
		body = m.StreamData + " …"
	case m.Payload.Type == domain.PayloadImage:
		body = fmt.Sprintf("[image %dx%d] %s", m.Payload.Width, m.Payload.Height, m.Payload.URL)
	case m.Payload.Type == domain.PayloadFile:
		body = fmt.Sprintf("[file %s] %s", m.Payload.Name, m.Payload.URL)
	case domain.IsSystemPayloadType(m.Payload.Type):
		body = domain.FormatSystemContent(m.Payload.Content, m.Payload.Extra)
	}

	line := fmt.Sprintf("[%s] %s: %s", m.Time.Format("15:04:05"), who, body)
	if m.ErrorMessage != "" {
		line += " (error: " + m.ErrorMessage + ")"
	}
	if m.UploadError != "" {
		line += " (upload: " + m.UploadError + ")"
	}
	return line
}

func find(msgs []domain.ChatMessage, id string) (domain.ChatMessage, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// mimeByExt guesses the content type for the upload form from the filename.
func mimeByExt(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
