package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	ws "github.com/SVAnbarasan/ZeroByX/adapters/websocket"
)

var (
	chatURL   string
	chatModel string
	chatToken string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a persona over the server's websocket",
	Long: `chat connects to a running server's /ws endpoint, sends every line typed
on stdin to the selected persona, and prints the streamed reply. Type "exit"
to quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "ws://localhost:5000/ws", "websocket endpoint")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "persona id (server default when empty)")
	chatCmd.Flags().StringVar(&chatToken, "token", "", "bearer token when the server requires auth")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	header := http.Header{}
	if chatToken != "" {
		header.Set("Authorization", "Bearer "+chatToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), chatURL, header)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", redact(chatURL), err)
	}
	defer conn.Close()

	go func() {
		<-cmd.Context().Done()
		conn.Close()
	}()

	return chatLoop(conn, cmd.InOrStdin(), cmd.OutOrStdout(), chatModel)
}

// chatLoop sends each input line as one turn and prints frames until the
// turn's done frame arrives.
func chatLoop(conn *websocket.Conn, in io.Reader, out io.Writer, model string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, `Enter messages to send (type "exit" to quit):`)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "exit" {
			return nil
		}
		if text == "" {
			continue
		}

		if err := conn.WriteJSON(ws.Inbound{Message: text, Model: model}); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		if err := printTurn(conn, out); err != nil {
			return err
		}
	}
}

func printTurn(conn *websocket.Conn, out io.Writer) error {
	for {
		var f ws.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("reading reply: %w", err)
		}
		switch f.Type {
		case ws.FrameDone:
			return nil
		case ws.FrameError:
			fmt.Fprintln(out, "Error:", f.Data)
		default:
			fmt.Fprintln(out, f.Data)
		}
	}
}

// redact hides a token passed in the query string.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if q := u.Query(); q.Has("token") {
		q.Set("token", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
